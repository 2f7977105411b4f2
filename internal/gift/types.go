// Package gift holds the domain types shared by the guest, recommendation, migration and session packages.
package gift

import (
	"strings"
	"time"
)

// GenderUnspecified is used whenever the recipient's gender was never asked for.
const GenderUnspecified = "prefer_not_to_say"

// OccasionOther is the occasion value that defers to a free-text custom occasion.
const OccasionOther = "Other"

// Note is a free-text fact attached to a profile.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"date"`
}

// Profile is a gift recipient owned by an authenticated account.
type Profile struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"user_id"`
	Name         string    `json:"name"`
	Relationship string    `json:"relationship"`
	Gender       string    `json:"gender"`
	Age          int       `json:"age"`
	Interest     string    `json:"interest"` // comma-joined
	Notes        []Note    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Interests splits the comma-joined interest string, trimming and dropping empty entries.
func (p Profile) Interests() []string {
	return SplitInterests(p.Interest)
}

// Draft returns the mutable fields of the profile.
func (p Profile) Draft() ProfileDraft {
	return ProfileDraft{
		Name:         p.Name,
		Relationship: p.Relationship,
		Gender:       p.Gender,
		Age:          p.Age,
		Interest:     p.Interest,
		Notes:        append([]Note(nil), p.Notes...),
	}
}

// ProfileDraft is the payload used to create or update a profile.
type ProfileDraft struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Gender       string `json:"gender"`
	Age          int    `json:"age"`
	Interest     string `json:"interest"`
	Notes        []Note `json:"notes"`
}

// Validate checks the fields a profile form must carry. Age is checked separately
// when a request is built.
func (d ProfileDraft) Validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return NewValidationError("name", "name is required")
	case strings.TrimSpace(d.Relationship) == "":
		return NewValidationError("relationship", "relationship is required")
	case d.Age <= 0:
		return NewValidationError("age", "invalid age")
	case len(SplitInterests(d.Interest)) == 0:
		return NewValidationError("interest", "at least one interest is required")
	}
	return nil
}

// Recommendation is one normalized gift suggestion. Immutable once produced.
type Recommendation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Link        string `json:"link,omitempty"`
}

// RecommendationSet is one persisted batch of suggestions for a profile and occasion.
type RecommendationSet struct {
	ID              string           `json:"id"`
	AccountID       string           `json:"user_id"`
	ProfileID       string           `json:"profile_id"`
	Occasion        string           `json:"occasion"`
	OccasionDate    *time.Time       `json:"occasion_date"`
	OccasionNotes   string           `json:"occasion_notes,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// SetDraft is a recommendation set before the store assigns its id and timestamps.
type SetDraft struct {
	ProfileID       string
	Occasion        string
	OccasionDate    *time.Time
	OccasionNotes   string
	Recommendations []Recommendation
}

// Occasion is what the user submits when asking for suggestions for a selected profile.
type Occasion struct {
	Name  string    `json:"occasion"`
	Date  time.Time `json:"date"`
	Notes string    `json:"notes,omitempty"`
}

// FormSnapshot records the request that produced a batch of recommendations.
type FormSnapshot struct {
	ProfileID string `json:"profile_id"`
	Occasion
}

// GuestForm is the quick-recommendation form filled in without a profile.
type GuestForm struct {
	RecipientName     string   `json:"recipientName"`
	Age               string   `json:"age"`
	SelectedInterests []string `json:"selectedInterests"`
	Relationship      string   `json:"relationship"`
	Occasion          string   `json:"occasion"`
	CustomOccasion    string   `json:"customOccasion,omitempty"`
	Budget            string   `json:"budget,omitempty"`
	AdditionalNotes   string   `json:"additionalNotes,omitempty"`
}

// Validate reports a single ValidationError when any required field is missing.
func (f GuestForm) Validate() error {
	if strings.TrimSpace(f.RecipientName) == "" ||
		strings.TrimSpace(f.Age) == "" ||
		len(f.SelectedInterests) == 0 ||
		strings.TrimSpace(f.Relationship) == "" ||
		strings.TrimSpace(f.Occasion) == "" {
		return NewValidationError("form", "please fill in all required fields")
	}
	return nil
}

// OccasionLabel resolves the occasion to display and persist: the custom occasion
// wins only when the occasion is "Other" and a custom value was given.
func (f GuestForm) OccasionLabel() string {
	if f.Occasion == OccasionOther && strings.TrimSpace(f.CustomOccasion) != "" {
		return f.CustomOccasion
	}
	return f.Occasion
}

// AddInterest appends an interest unless it is blank or already selected. Display order is kept.
func (f *GuestForm) AddInterest(interest string) {
	f.SelectedInterests = dedupInterests(append(f.SelectedInterests, interest))
}

// Normalize trims the selected interests and drops blanks and repeats, keeping first-seen order.
func (f *GuestForm) Normalize() {
	f.SelectedInterests = dedupInterests(f.SelectedInterests)
}

func dedupInterests(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, interest := range in {
		interest = strings.TrimSpace(interest)
		if interest == "" {
			continue
		}
		if _, ok := seen[interest]; ok {
			continue
		}
		seen[interest] = struct{}{}
		out = append(out, interest)
	}
	return out
}

// SplitInterests splits a comma-joined interest string.
func SplitInterests(joined string) []string {
	var out []string
	for _, part := range strings.Split(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinInterests is the inverse of SplitInterests.
func JoinInterests(interests []string) string {
	return strings.Join(interests, ", ")
}

// JoinNotes concatenates the non-empty parts with a blank line between them.
func JoinNotes(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
