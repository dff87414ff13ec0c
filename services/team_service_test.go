package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamtrack/teamtrack/models"
)

type teamFixture struct {
	svc      TeamService
	userRepo *fakeUserRepo
	teamRepo *fakeTeamRepo
	notifier *recordingNotifier

	admin    *models.User
	captain  *models.User
	member   *models.User
	outsider *models.User
	team     *models.Team
}

func newTeamFixture(t *testing.T) *teamFixture {
	t.Helper()
	userRepo := newFakeUserRepo()
	teamRepo := newFakeTeamRepo()
	notifier := &recordingNotifier{}

	f := &teamFixture{
		userRepo: userRepo,
		teamRepo: teamRepo,
		notifier: notifier,
		svc:      NewTeamService(teamRepo, userRepo, nil, notifier),
	}
	f.admin = userRepo.add(models.User{DisplayName: "Admin", PhoneNumber: "+1", Admin: true})
	f.captain = userRepo.add(models.User{DisplayName: "Captain", PhoneNumber: "+2"})
	f.member = userRepo.add(models.User{DisplayName: "Member", PhoneNumber: "+3"})
	f.outsider = userRepo.add(models.User{DisplayName: "Outsider", PhoneNumber: "+4"})
	f.team = teamRepo.add(models.Team{
		Name:       "Hornets",
		MemberIDs:  []int{f.captain.ID, f.member.ID},
		CaptainIDs: []int{f.captain.ID},
	})
	return f
}

func TestCreateTeamAdminOnly(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTeam(ctx, CreateTeamInput{Name: "Wasps"}, f.captain.ID)
	assert.ErrorIs(t, err, ErrAdminOnly)

	team, err := f.svc.CreateTeam(ctx, CreateTeamInput{Name: "Wasps", Bio: "Midweek side"}, f.admin.ID)
	require.NoError(t, err)
	assert.NotZero(t, team.ID)
	assert.Equal(t, "Wasps", team.Name)
}

func TestCreateTeamValidation(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateTeam(ctx, CreateTeamInput{Name: "  "}, f.admin.ID)
	assert.ErrorIs(t, err, ErrTeamNameRequired)

	_, err = f.svc.CreateTeam(ctx, CreateTeamInput{Name: "Hornets"}, f.admin.ID)
	assert.ErrorIs(t, err, ErrTeamNameConflict)
}

func TestApplyIdempotent(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Apply(ctx, f.team.ID, f.outsider.ID))
	require.NoError(t, f.svc.Apply(ctx, f.team.ID, f.outsider.ID), "second apply is a no-op")

	team, err := f.teamRepo.GetByID(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{f.outsider.ID}, team.AppliedIDs)
}

func TestApplyAsMemberRejected(t *testing.T) {
	f := newTeamFixture(t)
	err := f.svc.Apply(context.Background(), f.team.ID, f.member.ID)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestApproveMovesApplicantToMembers(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Apply(ctx, f.team.ID, f.outsider.ID))

	t.Run("member cannot approve", func(t *testing.T) {
		err := f.svc.Approve(ctx, f.team.ID, f.outsider.ID, f.member.ID)
		assert.ErrorIs(t, err, ErrCaptainOnly)
	})

	require.NoError(t, f.svc.Approve(ctx, f.team.ID, f.outsider.ID, f.captain.ID))

	team, err := f.teamRepo.GetByID(ctx, f.team.ID)
	require.NoError(t, err)
	assert.True(t, team.HasMember(f.outsider.ID))
	assert.False(t, team.HasApplied(f.outsider.ID), "approval clears the application")
	assert.Contains(t, f.notifier.teamUpdates, f.team.ID)
}

func TestApproveWithoutApplication(t *testing.T) {
	f := newTeamFixture(t)
	err := f.svc.Approve(context.Background(), f.team.ID, f.outsider.ID, f.captain.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDenyRemovesApplicationOnly(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Apply(ctx, f.team.ID, f.outsider.ID))
	require.NoError(t, f.svc.Deny(ctx, f.team.ID, f.outsider.ID, f.captain.ID))

	team, err := f.teamRepo.GetByID(ctx, f.team.ID)
	require.NoError(t, err)
	assert.False(t, team.HasApplied(f.outsider.ID))
	assert.False(t, team.HasMember(f.outsider.ID))
}

func TestWithdrawApplicationNoop(t *testing.T) {
	f := newTeamFixture(t)
	assert.NoError(t, f.svc.WithdrawApplication(context.Background(), f.team.ID, f.outsider.ID))
}

func TestAddMemberClearsApplication(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Apply(ctx, f.team.ID, f.outsider.ID))
	require.NoError(t, f.svc.AddMember(ctx, f.team.ID, f.outsider.ID, f.captain.ID))

	team, err := f.teamRepo.GetByID(ctx, f.team.ID)
	require.NoError(t, err)
	assert.True(t, team.HasMember(f.outsider.ID))
	assert.False(t, team.HasApplied(f.outsider.ID))
}

func TestAddMemberUnknownUser(t *testing.T) {
	f := newTeamFixture(t)
	err := f.svc.AddMember(context.Background(), f.team.ID, 999, f.captain.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRemoveMember(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	t.Run("captain must be demoted first", func(t *testing.T) {
		err := f.svc.RemoveMember(ctx, f.team.ID, f.captain.ID, f.admin.ID)
		assert.ErrorIs(t, err, ErrCannotRemoveCaptain)

		team, _ := f.teamRepo.GetByID(ctx, f.team.ID)
		assert.True(t, team.HasMember(f.captain.ID), "failed removal must not mutate the roster")
	})

	t.Run("non-member rejected", func(t *testing.T) {
		err := f.svc.RemoveMember(ctx, f.team.ID, f.outsider.ID, f.captain.ID)
		assert.ErrorIs(t, err, ErrNotAMember)
	})

	t.Run("plain member removed", func(t *testing.T) {
		require.NoError(t, f.svc.RemoveMember(ctx, f.team.ID, f.member.ID, f.captain.ID))
		team, _ := f.teamRepo.GetByID(ctx, f.team.ID)
		assert.False(t, team.HasMember(f.member.ID))
	})
}

func TestPromoteAndDemoteCaptain(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	t.Run("captain cannot promote", func(t *testing.T) {
		err := f.svc.PromoteCaptain(ctx, f.team.ID, f.member.ID, f.captain.ID)
		assert.ErrorIs(t, err, ErrAdminOnly)
	})

	t.Run("only members can be promoted", func(t *testing.T) {
		err := f.svc.PromoteCaptain(ctx, f.team.ID, f.outsider.ID, f.admin.ID)
		assert.ErrorIs(t, err, ErrNotAMember)
	})

	require.NoError(t, f.svc.PromoteCaptain(ctx, f.team.ID, f.member.ID, f.admin.ID))
	team, _ := f.teamRepo.GetByID(ctx, f.team.ID)
	assert.True(t, team.HasCaptain(f.member.ID))

	require.NoError(t, f.svc.DemoteCaptain(ctx, f.team.ID, f.member.ID, f.admin.ID))
	team, _ = f.teamRepo.GetByID(ctx, f.team.ID)
	assert.False(t, team.HasCaptain(f.member.ID))
	assert.True(t, team.HasMember(f.member.ID), "demotion keeps membership")
}

func TestUpdateTeamDetails(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	newName := "Hornets 2nd XI"

	t.Run("member cannot edit", func(t *testing.T) {
		_, err := f.svc.UpdateTeamDetails(ctx, f.team.ID, UpdateTeamInput{Name: &newName}, f.member.ID)
		assert.ErrorIs(t, err, ErrCaptainOnly)
	})

	team, err := f.svc.UpdateTeamDetails(ctx, f.team.ID, UpdateTeamInput{Name: &newName}, f.captain.ID)
	require.NoError(t, err)
	assert.Equal(t, newName, team.Name)
}

func TestGetTeamByIDResolvesProfiles(t *testing.T) {
	f := newTeamFixture(t)

	team, err := f.svc.GetTeamByID(context.Background(), f.team.ID, true)
	require.NoError(t, err)

	require.Len(t, team.Members, 2)
	assert.Equal(t, "Captain", team.Members[0].DisplayName)
	assert.Equal(t, "Member", team.Members[1].DisplayName)
	require.Len(t, team.Captains, 1)
	assert.Equal(t, f.captain.ID, team.Captains[0].ID)
}

func TestListMyTeams(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	f.teamRepo.add(models.Team{Name: "Wasps", MemberIDs: []int{f.outsider.ID}})

	t.Run("member sees own teams", func(t *testing.T) {
		teams, err := f.svc.ListMyTeams(ctx, f.member.ID)
		require.NoError(t, err)
		require.Len(t, teams, 1)
		assert.Equal(t, f.team.ID, teams[0].ID)
	})

	t.Run("admin sees all teams", func(t *testing.T) {
		teams, err := f.svc.ListMyTeams(ctx, f.admin.ID)
		require.NoError(t, err)
		assert.Len(t, teams, 2)
	})
}

func TestDeleteTeamAdminOnly(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteTeam(ctx, f.team.ID, f.captain.ID)
	assert.ErrorIs(t, err, ErrAdminOnly)

	require.NoError(t, f.svc.DeleteTeam(ctx, f.team.ID, f.admin.ID))
	_, err = f.teamRepo.GetByID(ctx, f.team.ID)
	assert.Error(t, err)
}
