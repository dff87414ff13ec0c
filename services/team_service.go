package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/policy"
	"github.com/teamtrack/teamtrack/repositories"
	"github.com/teamtrack/teamtrack/storage"
)

type CreateTeamInput struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

type UpdateTeamInput struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
}

type TeamService interface {
	// CreateTeam and DeleteTeam are administrator actions.
	CreateTeam(ctx context.Context, input CreateTeamInput, currentUserID int) (*models.Team, error)
	DeleteTeam(ctx context.Context, teamID int, currentUserID int) error

	GetTeamByID(ctx context.Context, teamID int, resolve bool) (*models.Team, error)
	ListTeams(ctx context.Context) ([]*models.Team, error)
	ListMyTeams(ctx context.Context, currentUserID int) ([]*models.Team, error)

	// UpdateTeamDetails edits name/bio/image only, never membership.
	UpdateTeamDetails(ctx context.Context, teamID int, input UpdateTeamInput, currentUserID int) (*models.Team, error)
	UploadTeamImage(ctx context.Context, teamID int, contentType string, body io.Reader, currentUserID int) (*models.Team, error)

	// Application queue.
	Apply(ctx context.Context, teamID int, currentUserID int) error
	WithdrawApplication(ctx context.Context, teamID int, currentUserID int) error
	Approve(ctx context.Context, teamID, userID int, currentUserID int) error
	Deny(ctx context.Context, teamID, userID int, currentUserID int) error

	// Direct roster edits bypassing the application queue.
	AddMember(ctx context.Context, teamID, userID int, currentUserID int) error
	RemoveMember(ctx context.Context, teamID, userID int, currentUserID int) error
	PromoteCaptain(ctx context.Context, teamID, userID int, currentUserID int) error
	DemoteCaptain(ctx context.Context, teamID, userID int, currentUserID int) error
}

type teamService struct {
	teamRepo repositories.TeamRepository
	userRepo repositories.UserRepository
	uploader storage.FileUploader
	notifier Notifier
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	notifier Notifier,
) TeamService {
	return &teamService{
		teamRepo: teamRepo,
		userRepo: userRepo,
		uploader: uploader,
		notifier: notifier,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, input CreateTeamInput, currentUserID int) (*models.Team, error) {
	current, err := s.currentUser(ctx, currentUserID)
	if err != nil {
		return nil, err
	}
	if !policy.IsAdmin(current) {
		return nil, ErrAdminOnly
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{Name: name, Bio: input.Bio}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

func (s *teamService) DeleteTeam(ctx context.Context, teamID int, currentUserID int) error {
	current, err := s.currentUser(ctx, currentUserID)
	if err != nil {
		return err
	}
	if !policy.IsAdmin(current) {
		return ErrAdminOnly
	}

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}

	if err := s.teamRepo.Delete(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to delete team %d: %w", teamID, err)
	}

	if team.ImageKey != nil && *team.ImageKey != "" {
		_ = s.uploader.Delete(ctx, *team.ImageKey)
	}
	s.notifier.TeamUpdated(teamID)
	return nil
}

// GetTeamByID returns the team; with resolve set, the member/captain/applicant
// id sets are expanded into full profiles via batched lookups.
func (s *teamService) GetTeamByID(ctx context.Context, teamID int, resolve bool) (*models.Team, error) {
	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	populateTeamImageURL(team, s.uploader)

	if resolve {
		if err := s.resolveTeamProfiles(ctx, team); err != nil {
			return nil, err
		}
	}
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context) ([]*models.Team, error) {
	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	for _, team := range teams {
		populateTeamImageURL(team, s.uploader)
	}
	return teams, nil
}

func (s *teamService) ListMyTeams(ctx context.Context, currentUserID int) ([]*models.Team, error) {
	current, err := s.currentUser(ctx, currentUserID)
	if err != nil {
		return nil, err
	}

	var teams []*models.Team
	if policy.IsAdmin(current) {
		teams, err = s.teamRepo.List(ctx)
	} else {
		teams, err = s.teamRepo.ListByMember(ctx, currentUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list teams for user %d: %w", currentUserID, err)
	}

	for _, team := range teams {
		populateTeamImageURL(team, s.uploader)
		if err := s.resolveTeamProfiles(ctx, team); err != nil {
			return nil, err
		}
	}
	return teams, nil
}

func (s *teamService) UpdateTeamDetails(ctx context.Context, teamID int, input UpdateTeamInput, currentUserID int) (*models.Team, error) {
	current, team, err := s.loadPrincipalAndTeam(ctx, currentUserID, teamID)
	if err != nil {
		return nil, err
	}
	if !policy.CanEditTeam(current, team) {
		return nil, ErrCaptainOnly
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTeamNameRequired
		}
		team.Name = name
	}
	if input.Bio != nil {
		team.Bio = *input.Bio
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to update team %d: %w", teamID, err)
	}

	populateTeamImageURL(team, s.uploader)
	s.notifier.TeamUpdated(teamID)
	return team, nil
}

func (s *teamService) UploadTeamImage(ctx context.Context, teamID int, contentType string, body io.Reader, currentUserID int) (*models.Team, error) {
	current, team, err := s.loadPrincipalAndTeam(ctx, currentUserID, teamID)
	if err != nil {
		return nil, err
	}
	if !policy.CanEditTeam(current, team) {
		return nil, ErrCaptainOnly
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("teams/%s%s", uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload team image: %w", err)
	}

	oldKey := team.ImageKey
	team.ImageKey = &key
	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to store team image key: %w", err)
	}
	if oldKey != nil && *oldKey != "" {
		_ = s.uploader.Delete(ctx, *oldKey)
	}

	populateTeamImageURL(team, s.uploader)
	s.notifier.TeamUpdated(teamID)
	return team, nil
}

// Apply puts the current user on the team's application queue. Applying twice
// is a no-op; members cannot apply.
func (s *teamService) Apply(ctx context.Context, teamID int, currentUserID int) error {
	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.HasMember(currentUserID) {
		return ErrAlreadyMember
	}
	if team.HasApplied(currentUserID) {
		return nil
	}

	if err := s.teamRepo.AddApplication(ctx, teamID, currentUserID); err != nil {
		return fmt.Errorf("failed to apply to team %d: %w", teamID, err)
	}
	s.notifier.TeamUpdated(teamID)
	return nil
}

// WithdrawApplication removes the current user's pending application; no-op
// when none exists.
func (s *teamService) WithdrawApplication(ctx context.Context, teamID int, currentUserID int) error {
	if _, err := s.loadTeam(ctx, teamID); err != nil {
		return err
	}

	err := s.teamRepo.RemoveApplication(ctx, teamID, currentUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return nil
		}
		return fmt.Errorf("failed to withdraw application: %w", err)
	}
	s.notifier.TeamUpdated(teamID)
	return nil
}

func (s *teamService) Approve(ctx context.Context, teamID, userID int, currentUserID int) error {
	current, team, err := s.loadPrincipalAndTeam(ctx, currentUserID, teamID)
	if err != nil {
		return err
	}
	if !policy.CanManageSession(current, team) {
		return ErrCaptainOnly
	}

	if err := s.teamRepo.ApproveApplication(ctx, teamID, userID); err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to approve user %d for team %d: %w", userID, teamID, err)
	}
	s.notifier.TeamUpdated(teamID)
	return nil
}

func (s *teamService) Deny(ctx context.Context, teamID, userID int, currentUserID int) error {
	current, team, err := s.loadPrincipalAndTeam(ctx, currentUserID, teamID)
	if err != nil {
		return err
	}
	if !policy.CanManageSession(current, team) {
		return ErrCaptainOnly
	}

	if err := s.teamRepo.RemoveApplication(ctx, teamID, userID); err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to deny user %d for team %d: %w", userID, teamID, err)
	}
	s.notifier.TeamUpdated(teamID)
	return nil
}

func (s *teamService) AddMember(ctx context.Context, teamID, userID int, currentUserID int) error {
	current, team, err := s.loadPrincipalAndTeam(ctx, currentUserID, teamID)
	if err != nil {
		return err
	}
	if !policy.CanEditTeam(current, team) {
		return ErrCaptainOnly
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.teamRepo.AddMember(ctx, teamID, userID); err != nil {
		return fmt.Errorf("failed to add user %d to team %d: %w", userID, teamID, err)
	}
	// A pending application becomes redundant once the user is a member.
	if err := s.teamRepo.RemoveApplication(ctx, teamID, userID); err != nil &&
		!errors.Is(err, repositories.ErrApplicationNotFound) {
		return fmt.Errorf("failed to clear application for user %d: %w", userID, err)
	}
	s.notifier.TeamUpdated(teamID)
	return nil
}

// RemoveMember takes a user off the roster. Captains must be demoted before
// they can be removed; the store does not enforce this, so it is checked here
// against freshly loaded state.
func (s *teamService) RemoveMember(ctx context.Context, teamID, userID int, currentUserID int) error {
	current, team, err := s.loadPrincipalAndTeam(ctx, currentUserID, teamID)
	if err != nil {
		return err
	}
	if !policy.CanEditTeam(current, team) {
		return ErrCaptainOnly
	}
	if team.HasCaptain(userID) {
		return ErrCannotRemoveCaptain
	}
	if !team.HasMember(userID) {
		return ErrNotAMember
	}

	if err := s.teamRepo.RemoveMember(ctx, teamID, userID); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrNotAMember
		}
		return fmt.Errorf("failed to remove user %d from team %d: %w", userID, teamID, err)
	}
	// No cascade into session attendance sets: stale ids are dropped when
	// profiles are resolved at read time.
	s.notifier.TeamUpdated(teamID)
	return nil
}

func (s *teamService) PromoteCaptain(ctx context.Context, teamID, userID int, currentUserID int) error {
	return s.setCaptain(ctx, teamID, userID, currentUserID, true)
}

func (s *teamService) DemoteCaptain(ctx context.Context, teamID, userID int, currentUserID int) error {
	return s.setCaptain(ctx, teamID, userID, currentUserID, false)
}

func (s *teamService) setCaptain(ctx context.Context, teamID, userID, currentUserID int, captain bool) error {
	current, err := s.currentUser(ctx, currentUserID)
	if err != nil {
		return err
	}
	if !policy.IsAdmin(current) {
		return ErrAdminOnly
	}

	team, err := s.loadTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if !team.HasMember(userID) {
		return ErrNotAMember
	}

	if err := s.teamRepo.SetCaptain(ctx, teamID, userID, captain); err != nil {
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			return ErrNotAMember
		}
		return fmt.Errorf("failed to set captain flag: %w", err)
	}
	s.notifier.TeamUpdated(teamID)
	return nil
}

func (s *teamService) resolveTeamProfiles(ctx context.Context, team *models.Team) error {
	var err error
	if team.Members, err = s.resolve(ctx, team.MemberIDs); err != nil {
		return err
	}
	if team.Captains, err = s.resolve(ctx, team.CaptainIDs); err != nil {
		return err
	}
	if team.Applied, err = s.resolve(ctx, team.AppliedIDs); err != nil {
		return err
	}
	return nil
}

func (s *teamService) resolve(ctx context.Context, ids []int) ([]models.User, error) {
	users, err := ResolveProfiles(ctx, s.userRepo, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		populateUserPhotoURL(&users[i], s.uploader)
	}
	return users, nil
}

func (s *teamService) currentUser(ctx context.Context, currentUserID int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, currentUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to identify current user: %w", err)
	}
	return user, nil
}

func (s *teamService) loadTeam(ctx context.Context, teamID int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %d: %w", teamID, err)
	}
	return team, nil
}

func (s *teamService) loadPrincipalAndTeam(ctx context.Context, currentUserID, teamID int) (*models.User, *models.Team, error) {
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
