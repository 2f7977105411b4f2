// Package recommendation builds requests for the external gift recommendation service,
// normalizes its loosely-typed responses and saves results for authenticated accounts.
package recommendation

import (
	"strconv"
	"strings"
	"time"

	"github.com/lewisedginton/present_ponder/internal/gift"
)

const (
	DefaultLocation = "United Kingdom"
	DefaultCount    = 4
	DefaultOccasion = "General"
	// MinimumAge applies to managed profiles. Guest ages only need to be positive.
	MinimumAge = 16
)

// ProfileRef is the profile block of a request.
type ProfileRef struct {
	ProfileID    string `json:"profile_id"`
	Age          int    `json:"age"`
	Relationship string `json:"relationship"`
	Gender       string `json:"gender"`
}

// Request is the POST /recommend body.
type Request struct {
	Profile           ProfileRef `json:"profile"`
	Location          string     `json:"location"`
	UpcomingEvent     string     `json:"upcoming_event"`
	UpcomingEventDate string     `json:"upcoming_event_date"`
	ProfileInterests  []string   `json:"profile_interests"`
	Count             int        `json:"count"`
	Notes             string     `json:"notes,omitempty"`
	WebSearchEnabled  bool       `json:"web_search_enabled"`
}

// Subject is who the request is about. Age is kept raw so that form input can be validated here.
type Subject struct {
	ID           string
	Age          string
	Relationship string
	Gender       string
	Interests    string // comma-joined
	Guest        bool
}

// SubjectFromProfile describes a managed profile.
func SubjectFromProfile(p gift.Profile) Subject {
	return Subject{
		ID:           p.ID,
		Age:          strconv.Itoa(p.Age),
		Relationship: p.Relationship,
		Gender:       p.Gender,
		Interests:    p.Interest,
	}
}

// SubjectFromGuest describes a guest form under a synthetic context id.
func SubjectFromGuest(id string, f gift.GuestForm) Subject {
	f.Normalize()
	return Subject{
		ID:           id,
		Age:          f.Age,
		Relationship: f.Relationship,
		Gender:       gift.GenderUnspecified,
		Interests:    gift.JoinInterests(f.SelectedInterests),
		Guest:        true,
	}
}

// Builder carries the constants attached to every request.
type Builder struct {
	Location string
	Count    int
}

// NewBuilder returns a Builder, falling back to the defaults for zero values.
func NewBuilder(location string, count int) Builder {
	if location == "" {
		location = DefaultLocation
	}
	if count <= 0 {
		count = DefaultCount
	}
	return Builder{Location: location, Count: count}
}

// ParseAge parses a raw age and enforces min. Non-numeric input fails.
func ParseAge(raw string, min int) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || age < min {
		return 0, gift.NewValidationError("age", "invalid age")
	}
	return age, nil
}

// BuildRequest maps a subject and occasion to the service schema.
// notes is sent only when non-empty.
func (b Builder) BuildRequest(s Subject, occasion gift.Occasion, notes string) (Request, error) {
	min := MinimumAge
	if s.Guest {
		min = 1
	}
	age, err := ParseAge(s.Age, min)
	if err != nil {
		return Request{}, err
	}

	event := strings.TrimSpace(occasion.Name)
	if event == "" {
		event = DefaultOccasion
	}

	interests := gift.SplitInterests(s.Interests)
	if interests == nil {
		interests = []string{}
	}

	return Request{
		Profile: ProfileRef{
			ProfileID:    s.ID,
			Age:          age,
			Relationship: s.Relationship,
			Gender:       s.Gender,
		},
		Location:          b.Location,
		UpcomingEvent:     event,
		UpcomingEventDate: occasion.Date.UTC().Format(time.RFC3339),
		ProfileInterests:  interests,
		Count:             b.Count,
		Notes:             strings.TrimSpace(notes),
		WebSearchEnabled:  true,
	}, nil
}
