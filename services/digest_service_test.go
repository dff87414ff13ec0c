package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamtrack/teamtrack/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNextRun(t *testing.T) {
	svc := NewDigestService(nil, nil, nil, nil, discardLogger(), "ops@example.com", 18, time.UTC)

	t.Run("before the hour fires today", func(t *testing.T) {
		now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC), svc.nextRun(now))
	})

	t.Run("after the hour fires tomorrow", func(t *testing.T) {
		now := time.Date(2026, 6, 10, 19, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 6, 11, 18, 0, 0, 0, time.UTC), svc.nextRun(now))
	})

	t.Run("exactly on the hour fires tomorrow", func(t *testing.T) {
		now := time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 6, 11, 18, 0, 0, 0, time.UTC), svc.nextRun(now))
	})
}

func TestSendDaily(t *testing.T) {
	userRepo := newFakeUserRepo()
	teamRepo := newFakeTeamRepo()
	sessionRepo := newFakeSessionRepo()
	email := &recordingEmailSender{}

	alice := userRepo.add(models.User{DisplayName: "Alice", Email: "alice@example.com", PhoneNumber: "+1"})
	team := teamRepo.add(models.Team{Name: "Hornets", MemberIDs: []int{alice.ID}})

	now := time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)
	sessionRepo.add(models.Session{
		TeamID:      team.ID,
		Type:        models.SessionTraining,
		Name:        "Drills",
		Description: "Bring <b>boots</b>",
		Location:    "Main pitch",
		Start:       time.Date(2026, 6, 10, 19, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 6, 10, 20, 0, 0, 0, time.UTC),
		Attending:   []int{alice.ID},
	})
	// Tomorrow's session must not appear.
	sessionRepo.add(models.Session{
		TeamID:      team.ID,
		Type:        models.SessionTraining,
		Name:        "Future",
		Description: "x",
		Location:    "y",
		Start:       time.Date(2026, 6, 11, 19, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 6, 11, 20, 0, 0, 0, time.UTC),
	})

	svc := NewDigestService(sessionRepo, teamRepo, userRepo, email, discardLogger(), "ops@example.com", 18, time.UTC)
	require.NoError(t, svc.SendDaily(context.Background(), now))

	require.Len(t, email.sent, 1)
	msg := email.sent[0]
	assert.Equal(t, "ops@example.com", msg.To)
	assert.Equal(t, "TeamTrack - Sessions Today", msg.Subject)
	assert.Contains(t, msg.Body, "Hornets")
	assert.Contains(t, msg.Body, "Alice")
	assert.Contains(t, msg.Body, "Bring <b>boots</b>", "descriptions render as raw HTML")
	assert.NotContains(t, msg.Body, "Future")
}

func TestSendDailyNoSessions(t *testing.T) {
	email := &recordingEmailSender{}
	svc := NewDigestService(newFakeSessionRepo(), newFakeTeamRepo(), newFakeUserRepo(), email, discardLogger(), "ops@example.com", 18, time.UTC)

	now := time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SendDaily(context.Background(), now))
	assert.Empty(t, email.sent, "quiet days send no email")
}

func TestRenderTemplateUnknown(t *testing.T) {
	_, err := RenderTemplate("no-such-template", nil)
	assert.Error(t, err)
}
