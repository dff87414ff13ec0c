package models

import (
	"errors"
	"fmt"
	"time"
)

type SessionType string

const (
	SessionTraining SessionType = "training"
	SessionFixture  SessionType = "fixture"
)

// FixtureDefaultDuration is applied when a fixture is created without an
// explicit end time.
const FixtureDefaultDuration = 90 * time.Minute

var (
	ErrSessionNameRequired        = errors.New("session name is required")
	ErrSessionLocationRequired    = errors.New("session location is required")
	ErrSessionDescriptionRequired = errors.New("session description is required")
	ErrSessionStartRequired       = errors.New("session start time is required")
	ErrSessionEndRequired         = errors.New("training sessions require an explicit end time")
	ErrSessionEndBeforeStart      = errors.New("session end time must be after start time")
	ErrSessionOppositionRequired  = errors.New("fixture opposition is required")
	ErrSessionInvalidType         = errors.New("session type must be training or fixture")
)

// Session is a tagged variant over {training, fixture}. Training sessions
// track attendance only; fixtures additionally track an availability set and
// carry an opposition name.
type Session struct {
	ID          int         `json:"id" db:"id"`
	TeamID      int         `json:"team_id" db:"team_id"`
	Type        SessionType `json:"type" db:"type"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description" db:"description"`
	Location    string      `json:"location" db:"location"`
	Opposition  *string     `json:"opposition,omitempty" db:"opposition"`
	Start       time.Time   `json:"start" db:"start_at"`
	End         time.Time   `json:"end" db:"end_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`

	Attending []int `json:"attending" db:"-"`
	// Available is tracked for fixtures only and stays independent of
	// Attending: captains pick the team from the available pool but are not
	// bound by it.
	Available []int `json:"available,omitempty" db:"-"`
}

func (s *Session) IsFixture() bool { return s.Type == SessionFixture }

// ApplyDefaults fills the derived fixture fields: a "<team> vs <opposition>"
// name and an end time 90 minutes after start. Training sessions are left
// untouched; their fields are all explicit.
func (s *Session) ApplyDefaults(teamName string) {
	if s.Type != SessionFixture {
		return
	}
	if s.Name == "" && s.Opposition != nil {
		s.Name = fmt.Sprintf("%s vs %s", teamName, *s.Opposition)
	}
	if s.End.IsZero() && !s.Start.IsZero() {
		s.End = s.Start.Add(FixtureDefaultDuration)
	}
}

// Validate checks the variant exhaustively. Call after ApplyDefaults.
func (s *Session) Validate() error {
	if s.Location == "" {
		return ErrSessionLocationRequired
	}
	if s.Description == "" {
		return ErrSessionDescriptionRequired
	}
	if s.Start.IsZero() {
		return ErrSessionStartRequired
	}

	switch s.Type {
	case SessionTraining:
		if s.Name == "" {
			return ErrSessionNameRequired
		}
		if s.End.IsZero() {
			return ErrSessionEndRequired
		}
	case SessionFixture:
		if s.Opposition == nil || *s.Opposition == "" {
			return ErrSessionOppositionRequired
		}
		if s.Name == "" {
			return ErrSessionNameRequired
		}
	default:
		return ErrSessionInvalidType
	}

	if !s.End.After(s.Start) {
		return ErrSessionEndBeforeStart
	}
	return nil
}

func (s *Session) IsAttending(userID int) bool { return containsID(s.Attending, userID) }
func (s *Session) IsAvailable(userID int) bool { return containsID(s.Available, userID) }
