// Command athletectl runs roster imports and the matching and contact
// classification steps from the command line.
//
//	athletectl import roster.csv --org org-1 --kind athletes
//	athletectl match roster.csv --first Jordan --last Smith --team Hawks
//	athletectl classify roster.csv
//	athletectl policy --policy-file match.yaml
//
// Output is a table on a terminal and JSON otherwise, or when --json is set.
// Imports use the in-memory store unless --store postgres is given, in which
// case DATABASE_URL and the other server settings are read from the
// environment.
package main
