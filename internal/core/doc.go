// Package core provides the service layer for athlete imports and review.
//
// This package sits between the transports (HTTP handlers, the athletectl
// CLI) and the domain packages. It owns no matching or provisioning logic of
// its own; it wires those packages together and adds the concerns every
// caller shares.
//
// # Architecture
//
//   - Service: The entry point for imports, review decisions and team
//     membership. Built over a [Repository] and a review store.
//   - ImportLimiter: Bounds how many imports run at once and lists the
//     running ones.
//   - Error mapping: Turns technical errors into coded user messages.
//   - Refresher: Keeps the pending review gauge in step with storage.
//
// # Import Flow
//
//  1. Transport calls [Service.ImportFile] or [Service.ImportOCR]
//  2. The file is size checked and parsed into rows
//  3. [Service.Import] resolves the organization, waits for a limiter slot
//     and applies the run timeout
//  4. The orchestrator validates, matches and commits each row, queueing
//     ambiguous rows for review
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - IMP001-IMP006: Import errors (row cap, empty, unknown kind or option)
//   - AUTH001-AUTH006: Authorization errors
//   - TEAM001-TEAM002: Team policy errors
//   - REV001-REV006: Review decision errors
//   - FILE001-FILE005: File errors (size, format, encoding)
//   - DB001-DB007: Database errors (duplicates, connections)
package core
