package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/policy"
	"github.com/teamtrack/teamtrack/repositories"
)

type CreateSessionInput struct {
	TeamID      int                `json:"team_id"`
	Type        models.SessionType `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Location    string             `json:"location"`
	Opposition  *string            `json:"opposition"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
}

type UpdateSessionInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	Opposition  *string    `json:"opposition"`
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
}

type SessionService interface {
	Create(ctx context.Context, input CreateSessionInput, currentUserID int) (*models.Session, error)
	Update(ctx context.Context, sessionID int, input UpdateSessionInput, currentUserID int) (*models.Session, error)
	Delete(ctx context.Context, sessionID int, currentUserID int) error

	// GetByID and ListForViewer apply the visibility transform before
	// returning: confidential attendance entries never leave this layer for
	// viewers who may not see them.
	GetByID(ctx context.Context, sessionID int, currentUserID int) (*models.Session, error)
	ListForViewer(ctx context.Context, currentUserID int) ([]*models.Session, error)

	// Self-service toggles; members only, same-day-or-future sessions only.
	SetAttending(ctx context.Context, sessionID int, present bool, currentUserID int) (*models.Session, error)
	SetAvailable(ctx context.Context, sessionID int, present bool, currentUserID int) (*models.Session, error)

	// PickTeam is the captain's authoritative selection for a fixture:
	// add or remove any member, regardless of their availability marking.
	PickTeam(ctx context.Context, sessionID, memberID int, present bool, currentUserID int) (*models.Session, error)

	// AttendanceRoster resolves the attending set to profiles, for display
	// and for the register export. Captains and admins only.
	AttendanceRoster(ctx context.Context, sessionID int, currentUserID int) (*models.Session, *models.Team, []models.User, error)
}

type sessionService struct {
	sessionRepo repositories.SessionRepository
	teamRepo    repositories.TeamRepository
	userRepo    repositories.UserRepository
	notifier    Notifier
	loc         *time.Location
	now         func() time.Time
}

func NewSessionService(
	sessionRepo repositories.SessionRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	notifier Notifier,
	loc *time.Location,
) SessionService {
	if loc == nil {
		loc = time.Local
	}
	return &sessionService{
		sessionRepo: sessionRepo,
		teamRepo:    teamRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		loc:         loc,
		now:         time.Now,
	}
}

func (s *sessionService) Create(ctx context.Context, input CreateSessionInput, currentUserID int) (*models.Session, error) {
	current, team, err := s.loadPrincipalAndTeam(ctx, currentUserID, input.TeamID)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageSession(current, team) {
		return nil, ErrCaptainOnly
	}

	session := &models.Session{
		TeamID:      team.ID,
		Type:        input.Type,
		Name:        input.Name,
		Description: input.Description,
		Location:    input.Location,
		Opposition:  input.Opposition,
		Start:       input.Start,
		End:         input.End,
	}
	session.ApplyDefaults(team.Name)
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.notifier.SessionUpdated(team.ID, session.ID)
	return session, nil
}

// Update re-resolves the owning team from the stored session rather than from
// any client-supplied reference, so a forged team id cannot widen the caller's
// rights. Type and team are immutable.
func (s *sessionService) Update(ctx context.Context, sessionID int, input UpdateSessionInput, currentUserID int) (*models.Session, error) {
	current, session, team, err := s.loadPrincipalSessionTeam(ctx, currentUserID, sessionID)
	if err != nil {
		return nil, err
	}
	if !policy.CanManageSession(current, team) {
		return nil, ErrCaptainOnly
	}

	if input.Name != nil {
		session.Name = *input.Name
	}
	if input.Description != nil {
		session.Description = *input.Description
	}
	if input.Location != nil {
		session.Location = *input.Location
	}
	if input.Opposition != nil && session.IsFixture() {
		session.Opposition = input.Opposition
		if input.Name == nil {
			// Keep the derived name in step with the opposition.
			session.Name = fmt.Sprintf("%s vs %s", team.Name, *input.Opposition)
		}
	}
	if input.Start != nil {
		session.Start = *input.Start
		if session.IsFixture() && input.End == nil {
			session.End = session.Start.Add(models.FixtureDefaultDuration)
		}
	}
	if input.End != nil {
		session.End = *input.End
	}

	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to update session %d: %w", sessionID, err)
	}

	s.notifier.SessionUpdated(team.ID, session.ID)
	return session, nil
}

func (s *sessionService) Delete(ctx context.Context, sessionID int, currentUserID int) error {
	current, session, team, err := s.loadPrincipalSessionTeam(ctx, currentUserID, sessionID)
	if err != nil {
		return err
	}
	if !policy.CanManageSession(current, team) {
		return ErrCaptainOnly
	}

	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session %d: %w", sessionID, err)
	}

	s.notifier.SessionDeleted(team.ID, session.ID)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, sessionID int, currentUserID int) (*models.Session, error) {
	current, session, team, err := s.loadPrincipalSessionTeam(ctx, currentUserID, sessionID)
	if err != nil {
		return nil, err
	}
	if !policy.IsMember(current, team) && !policy.IsAdmin(current) {
		return nil, ErrMembersOnly
	}
	return policy.FilterSessionForViewer(session, current, team), nil
}

// ListForViewer returns the sessions of every team the viewer belongs to (all
// teams for admins), each passed through the visibility transform.
func (s *sessionService) ListForViewer(ctx context.Context, currentUserID int) ([]*models.Session, error) {
	current, err := s.currentUser(ctx, currentUserID)
	if err != nil {
		return nil, err
	}

	var teamIDs []int
	if policy.IsAdmin(current) {
		teamIDs, err = s.teamRepo.ListAllIDs(ctx)
	} else {
		teamIDs, err = s.teamRepo.ListIDsByMember(ctx, currentUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list team ids: %w", err)
	}
	if len(teamIDs) == 0 {
		return []*models.Session{}, nil
	}

	sessions, err := s.sessionRepo.ListByTeamIDs(ctx, teamIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	teams := make(map[int]*models.Team)
	filtered := make([]*models.Session, 0, len(sessions))
	for _, session := range sessions {
		team, ok := teams[session.TeamID]
		if !ok {
			team, err = s.loadTeam(ctx, session.TeamID)
			if err != nil {
				return nil, err
			}
			teams[session.TeamID] = team
		}
		filtered = append(filtered, policy.FilterSessionForViewer(session, current, team))
	}
	return filtered, nil
}

func (s *sessionService) SetAttending(ctx context.Context, sessionID int, present bool, currentUserID int) (*models.Session, error) {
	return s.setOwnAttendance(ctx, sessionID, repositories.AttendanceAttending, present, currentUserID)
}

func (s *sessionService) SetAvailable(ctx context.Context, sessionID int, present bool, currentUserID int) (*models.Session, error) {
	return s.setOwnAttendance(ctx, sessionID, repositories.AttendanceAvailable, present, currentUserID)
}

// setOwnAttendance toggles the caller's own id only — never another user's.
func (s *sessionService) setOwnAttendance(ctx context.Context, sessionID int, kind string, present bool, currentUserID int) (*models.Session, error) {
	current, session, team, err := s.loadPrincipalSessionTeam(ctx, currentUserID, sessionID)
	if err != nil {
		return nil, err
	}

	if kind == repositories.AttendanceAvailable && !session.IsFixture() {
		return nil, ErrNotAFixture
	}
	if !policy.IsMember(current, team) {
		return nil, ErrMembersOnly
	}
	if !policy.CanMarkAttendance(current, team, session, s.now().In(s.loc)) {
		return nil, ErrSessionLocked
	}

	if err := s.sessionRepo.SetAttendance(ctx, sessionID, currentUserID, kind, present); err != nil {
		return nil, fmt.Errorf("failed to set %s for session %d: %w", kind, sessionID, err)
	}

	session, err = s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.notifier.SessionUpdated(team.ID, sessionID)
	return policy.FilterSessionForViewer(session, current, team), nil
}

func (s *sessionService) PickTeam(ctx context.Context, sessionID, memberID int, present bool, currentUserID int) (*models.Session, error) {
	current, session, team, err := s.loadPrincipalSessionTeam(ctx, currentUserID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsFixture() {
		return nil, ErrNotAFixture
	}
	if !policy.CanManageSession(current, team) {
		return nil, ErrCaptainOnly
	}
	if present && !team.HasMember(memberID) {
		return nil, ErrNotAMember
	}

	if err := s.sessionRepo.SetAttendance(ctx, sessionID, memberID, repositories.AttendanceAttending, present); err != nil {
		return nil, fmt.Errorf("failed to pick member %d for session %d: %w", memberID, sessionID, err)
	}

	session, err = s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.notifier.SessionUpdated(team.ID, sessionID)
	return session, nil
}

func (s *sessionService) AttendanceRoster(ctx context.Context, sessionID int, currentUserID int) (*models.Session, *models.Team, []models.User, error) {
	current, session, team, err := s.loadPrincipalSessionTeam(ctx, currentUserID, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !policy.CanViewFullAttendance(current, team) {
		return nil, nil, nil, ErrCaptainOnly
	}

	members, err := ResolveProfiles(ctx, s.userRepo, session.Attending)
	if err != nil {
		return nil, nil, nil, err
	}
	return session, team, members, nil
}

func (s *sessionService) currentUser(ctx context.Context, currentUserID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, currentUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to identify current user: %w", err)
	}
	return user, nil
}

func (s *sessionService) loadTeam(ctx context.Context, teamID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	return team, nil
}

func (s *sessionService) loadSession(ctx context.Context, sessionID int) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %d: %w", sessionID, err)
	}
	return session, nil
}

func (s *sessionService) loadPrincipalAndTeam(ctx context.Context, currentUserID, teamID int) (*models.User, *models.Team, error) {
	current, err := s.currentUser(ctx, currentUserID)
	if err != nil {
		return nil, nil, err
	}
	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}
	return current, team, nil
}

func (s *sessionService) loadPrincipalSessionTeam(ctx context.Context, currentUserID, sessionID int) (*models.User, *models.Session, *models.Team, error) {
	current, err := s.currentUser(ctx, currentUserID)
	if err != nil {
		return nil, nil, nil, err
	}
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	team, err := s.loadTeam(ctx, session.TeamID)
	if err != nil {
		return nil, nil, nil, err
	}
	return current, session, team, nil
}
