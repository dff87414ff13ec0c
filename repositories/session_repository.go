package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/teamtrack/teamtrack/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Attendance kinds stored in session_attendance.
const (
	AttendanceAttending = "attending"
	AttendanceAvailable = "available"
)

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id int) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id int) error
	ListByTeamIDs(ctx context.Context, teamIDs []int) ([]*models.Session, error)
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Session, error)

	// SetAttendance adds or removes a single (user, kind) entry. Both
	// directions are idempotent: re-adding an existing entry and removing a
	// missing one are no-ops.
	SetAttendance(ctx context.Context, sessionID, userID int, kind string, present bool) error
}

type postgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(db *sql.DB) SessionRepository {
	return &postgresSessionRepository{db: db}
}

func (r *postgresSessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (team_id, type, name, description, location, opposition, start_at, end_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		session.TeamID,
		session.Type,
		session.Name,
		session.Description,
		session.Location,
		session.Opposition,
		session.Start,
		session.End,
	).Scan(&session.ID, &session.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == "sessions_team_id_fkey" {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	session.Attending = []int{}
	if session.IsFixture() {
		session.Available = []int{}
	}
	return nil
}

func (r *postgresSessionRepository) GetByID(ctx context.Context, id int) (*models.Session, error) {
	query := `
		SELECT id, team_id, type, name, description, location, opposition, start_at, end_at, created_at
		FROM sessions
		WHERE id = $1`

	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.TeamID,
		&session.Type,
		&session.Name,
		&session.Description,
		&session.Location,
		&session.Opposition,
		&session.Start,
		&session.End,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if err := r.loadAttendance(ctx, []*models.Session{session}); err != nil {
		return nil, err
	}
	return session, nil
}

// Update rewrites the editable fields only; team_id and type are fixed at
// creation time.
func (r *postgresSessionRepository) Update(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions SET
			name = $1,
			description = $2,
			location = $3,
			opposition = $4,
			start_at = $5,
			end_at = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		session.Name,
		session.Description,
		session.Location,
		session.Opposition,
		session.Start,
		session.End,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session %d: %w", session.ID, err)
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}

func (r *postgresSessionRepository) Delete(ctx context.Context, id int) error {
	// Attendance rows cascade via FK.
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSessionNotFound)
}

func (r *postgresSessionRepository) ListByTeamIDs(ctx context.Context, teamIDs []int) ([]*models.Session, error) {
	if len(teamIDs) == 0 {
		return []*models.Session{}, nil
	}
	query := `
		SELECT id, team_id, type, name, description, location, opposition, start_at, end_at, created_at
		FROM sessions
		WHERE team_id = ANY($1)
		ORDER BY start_at ASC`
	return r.listSessions(ctx, query, pq.Array(teamIDs))
}

func (r *postgresSessionRepository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Session, error) {
	query := `
		SELECT id, team_id, type, name, description, location, opposition, start_at, end_at, created_at
		FROM sessions
		WHERE start_at >= $1 AND start_at < $2
		ORDER BY start_at ASC`
	return r.listSessions(ctx, query, from, to)
}

func (r *postgresSessionRepository) SetAttendance(ctx context.Context, sessionID, userID int, kind string, present bool) error {
	if present {
		query := `
			INSERT INTO session_attendance (session_id, user_id, kind)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_id, user_id, kind) DO NOTHING`
		_, err := r.db.ExecContext(ctx, query, sessionID, userID, kind)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23503" {
				if pqErr.Constraint == "session_attendance_session_id_fkey" {
					return ErrSessionNotFound
				}
				return ErrUserNotFound
			}
			return err
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_attendance WHERE session_id = $1 AND user_id = $2 AND kind = $3`,
		sessionID, userID, kind)
	return err
}

func (r *postgresSessionRepository) listSessions(ctx context.Context, query string, args ...interface{}) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0)
	for rows.Next() {
		session := &models.Session{}
		if err := rows.Scan(
			&session.ID,
			&session.TeamID,
			&session.Type,
			&session.Name,
			&session.Description,
			&session.Location,
			&session.Opposition,
			&session.Start,
			&session.End,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadAttendance(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *postgresSessionRepository) loadAttendance(ctx context.Context, sessions []*models.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	byID := make(map[int]*models.Session, len(sessions))
	sessionIDs := make([]int, 0, len(sessions))
	for _, s := range sessions {
		s.Attending = []int{}
		if s.IsFixture() {
			s.Available = []int{}
		}
		byID[s.ID] = s
		sessionIDs = append(sessionIDs, s.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, user_id, kind FROM session_attendance WHERE session_id = ANY($1) ORDER BY user_id`,
		pq.Array(sessionIDs))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID, userID int
		var kind string
		if err := rows.Scan(&sessionID, &userID, &kind); err != nil {
			return err
		}
		session := byID[sessionID]
		switch kind {
		case AttendanceAttending:
			session.Attending = append(session.Attending, userID)
		case AttendanceAvailable:
			session.Available = append(session.Available, userID)
		}
	}
	return rows.Err()
}
