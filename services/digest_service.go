package services

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/repositories"
)

// DigestService emails the operator a summary of every session taking place
// on the current calendar day. It runs once daily at a fixed hour in a fixed
// time zone; a failed run is logged and skipped, never retried.
type DigestService struct {
	sessionRepo repositories.SessionRepository
	teamRepo    repositories.TeamRepository
	userRepo    repositories.UserRepository
	email       EmailSender
	logger      *slog.Logger

	to   string
	hour int
	loc  *time.Location
}

func NewDigestService(
	sessionRepo repositories.SessionRepository,
	teamRepo repositories.TeamRepository,
	userRepo repositories.UserRepository,
	email EmailSender,
	logger *slog.Logger,
	to string,
	hour int,
	loc *time.Location,
) *DigestService {
	if loc == nil {
		loc = time.Local
	}
	return &DigestService{
		sessionRepo: sessionRepo,
		teamRepo:    teamRepo,
		userRepo:    userRepo,
		email:       email,
		logger:      logger,
		to:          to,
		hour:        hour,
		loc:         loc,
	}
}

type digestSession struct {
	TeamName    string
	TimeRange   string
	Description template.HTML
	Attending   []models.User
}

// Run blocks until ctx is cancelled, firing SendDaily at the configured hour
// each day.
func (s *DigestService) Run(ctx context.Context) {
	for {
		next := s.nextRun(time.Now().In(s.loc))
		timer := time.NewTimer(time.Until(next))
		s.logger.Info("digest scheduled", slog.Time("next_run", next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.SendDaily(ctx, time.Now().In(s.loc)); err != nil {
				s.logger.Error("digest run failed", slog.Any("error", err))
			}
		}
	}
}

// nextRun returns the next occurrence of the configured hour strictly after
// now.
func (s *DigestService) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SendDaily gathers the sessions starting within now's calendar day, joins
// team names and attending profiles, and emails the digest. Days with no
// sessions send nothing.
func (s *DigestService) SendDaily(ctx context.Context, now time.Time) error {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	sessions, err := s.sessionRepo.ListStartingBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("failed to list today's sessions: %w", err)
	}
	if len(sessions) == 0 {
		s.logger.Info("digest: no sessions today")
		return nil
	}

	items := make([]digestSession, 0, len(sessions))
	for _, session := range sessions {
		team, err := s.teamRepo.GetByID(ctx, session.TeamID)
		if err != nil {
			return fmt.Errorf("failed to load team %d for digest: %w", session.TeamID, err)
		}
		attending, err := ResolveProfiles(ctx, s.userRepo, session.Attending)
		if err != nil {
			return fmt.Errorf("failed to resolve attendees for session %d: %w", session.ID, err)
		}
		items = append(items, digestSession{
			TeamName:    team.Name,
			TimeRange:   formatSessionRange(session, s.loc),
			Description: template.HTML(session.Description),
			Attending:   attending,
		})
	}

	body, err := RenderTemplate("digest", struct{ Sessions []digestSession }{items})
	if err != nil {
		return err
	}

	subject := "TeamTrack - Sessions Today"
	if err := s.email.Send(s.to, subject, body); err != nil {
		return err
	}

	s.logger.Info("digest sent", slog.Int("sessions", len(items)))
	return nil
}

func formatSessionRange(session *models.Session, loc *time.Location) string {
	start := session.Start.In(loc)
	end := session.End.In(loc)
	if sameDay(start, end) {
		return fmt.Sprintf("%s - %s", start.Format("Mon 02 Jan 15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Mon 02 Jan 15:04"), end.Format("Mon 02 Jan 15:04"))
}
