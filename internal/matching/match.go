// Package matching resolves an imported name (and optional team hint) against
// the athletes already on record.
//
// FindBestMatch walks a fixed ladder of tiers and the first tier any candidate
// reaches wins:
//
//	exact name + exact team      Exact  100
//	exact name + partial team    Fuzzy  85..95, lower for bigger length mismatch
//	exact name, no hint          Fuzzy  70
//	exact name, no team on file  Fuzzy  65
//	exact name, team differs     Fuzzy  60
//	nothing                      None   0, alternatives from near names
//
// Scores come from a Policy so they can be tuned without code changes.
// Matching is deterministic: the same criteria and candidate order always
// produce the same Result.
package matching

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
)

// MatchType discriminates a Result.
type MatchType string

const (
	Exact MatchType = "exact"
	Fuzzy MatchType = "fuzzy"
	None  MatchType = "none"
)

// Reasons shown to reviewers and in row warnings.
const (
	ReasonExactTeam   = "exact name + team match"
	ReasonNoHint      = "name matched, no team provided"
	ReasonTeamless    = "name matched, athlete has no team on record"
	ReasonTeamDiffers = "name matched, team differs"
	ReasonNoMatch     = "no athlete matched"
	ReasonLastName    = "last name matched"
	ReasonFirstName   = "first name matched"
	ReasonSimilarName = "similar name"
	partialReasonFmt  = "name matched, partial team match (%q)"
)

// Criteria is what one import row tells us about the athlete.
type Criteria struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	TeamHint  string `json:"teamName,omitempty"`
}

// Candidate is an athlete already on record.
type Candidate struct {
	ID        string          `json:"id"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Teams     []model.TeamRef `json:"teams,omitempty"`
}

// FullName returns "First Last".
func (c Candidate) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// HasTeam reports whether the candidate is a member of the team with the given id.
func (c Candidate) HasTeam(teamID string) bool {
	return slices.ContainsFunc(c.Teams, func(t model.TeamRef) bool { return t.ID == teamID })
}

// Scored is a candidate with the score it earned and why.
type Scored struct {
	Candidate Candidate `json:"candidate"`
	Score     int       `json:"score"`
	Reason    string    `json:"reason"`
}

// Result is the outcome of FindBestMatch. Candidate is nil exactly when Type
// is None. Alternatives never include Candidate, are sorted by descending
// score and are capped by Policy.MaxAlternatives.
type Result struct {
	Type         MatchType  `json:"type"`
	Candidate    *Candidate `json:"candidate,omitempty"`
	Confidence   int        `json:"confidence"`
	Reason       string     `json:"reason"`
	Alternatives []Scored   `json:"alternatives"`
}

// Matched reports whether a candidate was chosen.
func (r Result) Matched() bool {
	return r.Type != None && r.Candidate != nil
}

// Suggested returns the chosen candidate as a Scored value, or nil.
func (r Result) Suggested() *Scored {
	if !r.Matched() {
		return nil
	}
	return &Scored{Candidate: *r.Candidate, Score: r.Confidence, Reason: r.Reason}
}

// tier ranks name-matched candidates; lower wins.
type tier int

const (
	tierExactTeam tier = iota
	tierPartialTeam
	tierNoHint
	tierTeamless
	tierTeamDiffers
	tierNearName
)

type scoredIdx struct {
	Scored
	tier  tier
	index int
}

// FindBestMatch returns the best candidate for criteria.
func FindBestMatch(criteria Criteria, candidates []Candidate, policy Policy) Result {
	none := Result{Type: None, Reason: ReasonNoMatch, Alternatives: []Scored{}}
	if len(candidates) == 0 {
		return none
	}

	first := Normalize(criteria.FirstName)
	last := Normalize(criteria.LastName)
	hint := Normalize(criteria.TeamHint)
	if first == "" && last == "" {
		return none
	}

	var matched, near []scoredIdx
	for i, c := range candidates {
		cf, cl := Normalize(c.FirstName), Normalize(c.LastName)
		if cf == first && cl == last {
			s := scoreTeam(c, hint, policy)
			s.index = i
			matched = append(matched, s)
			continue
		}
		if s, ok := scoreNearName(c, first, last, cf, cl); ok && s.Score >= policy.MinAlternativeScore {
			s.index = i
			near = append(near, s)
		}
	}

	sortScored(matched)
	sortScored(near)

	if len(matched) == 0 {
		none.Alternatives = capAlternatives(near, policy.MaxAlternatives)
		return none
	}

	best := matched[0]
	chosen := candidates[best.index]
	res := Result{
		Type:       Fuzzy,
		Candidate:  &chosen,
		Confidence: best.Score,
		Reason:     best.Reason,
	}
	if best.tier == tierExactTeam {
		res.Type = Exact
	}

	rest := append(slices.Clone(matched[1:]), near...)
	res.Alternatives = capAlternatives(rest, policy.MaxAlternatives)
	return res
}

// scoreTeam scores a candidate whose name matched exactly.
func scoreTeam(c Candidate, hint string, p Policy) scoredIdx {
	out := scoredIdx{Scored: Scored{Candidate: c}}

	switch {
	case hint == "":
		out.tier, out.Score, out.Reason = tierNoHint, p.NameOnlyScore, ReasonNoHint
		return out
	case len(c.Teams) == 0:
		out.tier, out.Score, out.Reason = tierTeamless, p.TeamlessScore, ReasonTeamless
		return out
	}

	out.tier, out.Score, out.Reason = tierTeamDiffers, p.TeamDiffersScore, ReasonTeamDiffers
	for _, t := range c.Teams {
		name := Normalize(t.Name)
		if name == hint {
			out.tier, out.Score, out.Reason = tierExactTeam, p.ExactTeamScore, ReasonExactTeam
			return out
		}
		if name == "" || !(strings.Contains(name, hint) || strings.Contains(hint, name)) {
			continue
		}
		score := partialScore(name, hint, p)
		if out.tier != tierPartialTeam || score > out.Score {
			out.tier, out.Score = tierPartialTeam, score
			out.Reason = fmt.Sprintf(partialReasonFmt, t.Name)
		}
	}
	return out
}

// partialScore interpolates between PartialTeamMax and PartialTeamMin by the
// relative length difference of the two names.
func partialScore(team, hint string, p Policy) int {
	lt, lh := utf8.RuneCountInString(team), utf8.RuneCountInString(hint)
	longest := max(lt, lh)
	if longest == 0 {
		return p.PartialTeamMax
	}
	diff := math.Abs(float64(lt - lh))
	span := float64(p.PartialTeamMax - p.PartialTeamMin)
	return p.PartialTeamMax - int(math.Round(diff/float64(longest)*span))
}

// scoreNearName scores a candidate whose name did not match exactly, for use
// as a reviewer alternative.
func scoreNearName(c Candidate, first, last, cf, cl string) (scoredIdx, bool) {
	out := scoredIdx{Scored: Scored{Candidate: c}, tier: tierNearName}
	switch {
	case last != "" && cl == last:
		out.Score = 50 + int(math.Round(25*Similarity(first, cf)))
		out.Reason = ReasonLastName
	case first != "" && cf == first:
		out.Score = 35 + int(math.Round(25*Similarity(last, cl)))
		out.Reason = ReasonFirstName
	default:
		sim := Similarity(first+" "+last, cf+" "+cl)
		if sim <= 0 {
			return out, false
		}
		out.Score = int(math.Round(60 * sim))
		out.Reason = ReasonSimilarName
	}
	return out, true
}

func sortScored(s []scoredIdx) {
	slices.SortStableFunc(s, func(a, b scoredIdx) int {
		if c := cmp.Compare(a.tier, b.tier); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
}

// capAlternatives orders by score across tiers and keeps the top n.
func capAlternatives(s []scoredIdx, n int) []Scored {
	slices.SortStableFunc(s, func(a, b scoredIdx) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	if n >= 0 && len(s) > n {
		s = s[:n]
	}
	out := make([]Scored, len(s))
	for i := range s {
		out[i] = s[i].Scored
	}
	return out
}

// Normalize case-folds s and collapses runs of whitespace to one space.
func Normalize(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Similarity returns 1 - distance(a, b) / max(len(a), len(b)), with the
// Levenshtein distance and lengths counted in runes. Two empty strings are not
// considered similar.
func Similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
