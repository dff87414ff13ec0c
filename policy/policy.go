// Package policy is the authorization rule set for teams and sessions.
//
// Every predicate is a pure function over already-loaded models. Services
// re-evaluate these against freshly read state immediately before each write;
// nothing else in the codebase is allowed to make an allow/deny decision.
package policy

import (
	"time"

	"github.com/teamtrack/teamtrack/models"
)

func IsAdmin(u *models.User) bool {
	return u != nil && u.Admin
}

func IsCaptain(u *models.User, t *models.Team) bool {
	return u != nil && t != nil && t.HasCaptain(u.ID)
}

func IsMember(u *models.User, t *models.Team) bool {
	return u != nil && t != nil && t.HasMember(u.ID)
}

func CanEditTeam(u *models.User, t *models.Team) bool {
	return IsCaptain(u, t) || IsAdmin(u)
}

func CanManageSession(u *models.User, t *models.Team) bool {
	return IsCaptain(u, t) || IsAdmin(u)
}

// CanMarkAttendance reports whether u may toggle their own attendance or
// availability on a session of team t. Members may only edit sessions that
// start on or after the current day: once a session's start has slipped into
// the past relative to the start of "now"'s day, the register is frozen.
func CanMarkAttendance(u *models.User, t *models.Team, s *models.Session, now time.Time) bool {
	if !IsMember(u, t) {
		return false
	}
	return !SessionLocked(s, now)
}

// SessionLocked reports whether the session started before the beginning of
// the day containing now (in now's location).
func SessionLocked(s *models.Session, now time.Time) bool {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.Start.Before(startOfDay)
}

// CanViewFullAttendance reports whether u sees unfiltered attendance and
// availability sets for sessions of team t.
func CanViewFullAttendance(u *models.User, t *models.Team) bool {
	return IsCaptain(u, t) || IsAdmin(u)
}

// FilterSessionForViewer applies the visibility transform before a session
// leaves the trust boundary:
//
//   - training: attending is reduced to the viewer's own id, if present;
//   - fixture: available is reduced to the viewer's own id, while attending
//     (the picked team) stays visible to every member.
//
// Captains of the session's team and admins receive the session unchanged.
// The input is not mutated.
func FilterSessionForViewer(s *models.Session, u *models.User, t *models.Team) *models.Session {
	if s == nil {
		return nil
	}
	if CanViewFullAttendance(u, t) {
		return s
	}

	out := *s
	switch s.Type {
	case models.SessionTraining:
		out.Attending = ownEntry(s.Attending, u)
	case models.SessionFixture:
		out.Available = ownEntry(s.Available, u)
	}
	return &out
}

func ownEntry(ids []int, u *models.User) []int {
	if u == nil {
		return []int{}
	}
	for _, id := range ids {
		if id == u.ID {
			return []int{u.ID}
		}
	}
	return []int{}
}
