// Package model holds the domain types shared by the import pipeline,
// the storage layer and the HTTP handlers.
package model

import (
	"slices"
	"strings"
	"time"
)

// TeamRef identifies a team inside one organization.
type TeamRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
}

// IsZero reports whether the reference points at no team.
func (t TeamRef) IsZero() bool {
	return t.ID == ""
}

// Gender values accepted on roster and measurement rows.
const (
	GenderMale         = "Male"
	GenderFemale       = "Female"
	GenderNotSpecified = "Not Specified"
)

// Competitive levels run from 1 (Elite) to 5 (Beginner).
const (
	CompetitiveLevelMin     = 1
	CompetitiveLevelMax     = 5
	CompetitiveLevelDefault = 3
)

// Athlete is a stored athlete record.
type Athlete struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organizationId"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	BirthDate        *time.Time `json:"birthDate,omitempty"`
	BirthYear        int        `json:"birthYear,omitempty"`
	GraduationYear   int        `json:"graduationYear,omitempty"`
	Gender           string     `json:"gender,omitempty"`
	Emails           []string   `json:"emails,omitempty"`
	PhoneNumbers     []string   `json:"phoneNumbers,omitempty"`
	Sports           []string   `json:"sports,omitempty"`
	HeightInches     float64    `json:"height,omitempty"`
	WeightPounds     float64    `json:"weight,omitempty"`
	School           string     `json:"school,omitempty"`
	CompetitiveLevel int        `json:"competitiveLevel,omitempty"`
	Teams            []TeamRef  `json:"teams,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Measurement is one recorded trial of a performance metric.
type Measurement struct {
	ID            string    `json:"id"`
	AthleteID     string    `json:"athleteId"`
	TeamID        string    `json:"teamId,omitempty"`
	Date          time.Time `json:"date"`
	Metric        string    `json:"metric"`
	Value         float64   `json:"value"`
	Units         string    `json:"units,omitempty"`
	FlyInDistance float64   `json:"flyInDistance,omitempty"`
	Age           int       `json:"age,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	SubmittedBy   string    `json:"submittedBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Role is the role an actor holds, either site-wide or inside an organization.
type Role string

const (
	RoleSiteAdmin Role = "site_admin"
	RoleOrgAdmin  Role = "org_admin"
	RoleCoach     Role = "coach"
	RoleAthlete   Role = "athlete"
)

// ParseRole maps a header or flag value onto a Role. Unknown values map to RoleAthlete,
// the least privileged role.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSiteAdmin:
		return RoleSiteAdmin
	case RoleOrgAdmin:
		return RoleOrgAdmin
	case RoleCoach:
		return RoleCoach
	default:
		return RoleAthlete
	}
}

// Actor is the authenticated user on whose behalf an import or decision runs.
type Actor struct {
	ID              string   `json:"id"`
	Role            Role     `json:"role"`
	OrganizationIDs []string `json:"organizationIds,omitempty"`
}

// IsSiteAdmin reports whether the actor bypasses organization checks.
func (a Actor) IsSiteAdmin() bool {
	return a.Role == RoleSiteAdmin
}

// BelongsTo reports whether the actor is a member of the organization.
func (a Actor) BelongsTo(organizationID string) bool {
	return a.IsSiteAdmin() || slices.Contains(a.OrganizationIDs, organizationID)
}

// CanManageTeams reports whether the actor may create teams in the organization.
// Only organization admins and coaches of that organization may, site admins always may.
func (a Actor) CanManageTeams(organizationID string) bool {
	if a.IsSiteAdmin() {
		return true
	}
	if !a.BelongsTo(organizationID) {
		return false
	}
	return a.Role == RoleOrgAdmin || a.Role == RoleCoach
}
