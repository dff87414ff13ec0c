package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/teamtrack/teamtrack/models"
)

var (
	ErrTeamNotFound        = errors.New("team not found")
	ErrTeamNameConflict    = errors.New("team name conflict")
	ErrMembershipNotFound  = errors.New("team membership not found")
	ErrApplicationNotFound = errors.New("team application not found")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) ([]*models.Team, error)
	ListByMember(ctx context.Context, userID int) ([]*models.Team, error)
	ListIDsByMember(ctx context.Context, userID int) ([]int, error)
	ListAllIDs(ctx context.Context) ([]int, error)

	// Membership. AddMember and AddApplication are idempotent inserts.
	AddMember(ctx context.Context, teamID, userID int) error
	RemoveMember(ctx context.Context, teamID, userID int) error
	SetCaptain(ctx context.Context, teamID, userID int, captain bool) error
	AddApplication(ctx context.Context, teamID, userID int) error
	RemoveApplication(ctx context.Context, teamID, userID int) error
	// ApproveApplication atomically turns an applicant into a member.
	ApproveApplication(ctx context.Context, teamID, userID int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) Create(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (name, bio, image_key)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, team.Name, team.Bio, team.ImageKey).
		Scan(&team.ID, &team.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "teams_name_key" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to insert team: %w", err)
	}

	team.MemberIDs = []int{}
	team.CaptainIDs = []int{}
	team.AppliedIDs = []int{}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `
		SELECT id, name, bio, image_key, created_at
		FROM teams
		WHERE id = $1`

	team := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID,
		&team.Name,
		&team.Bio,
		&team.ImageKey,
		&team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	if err := r.loadIDSets(ctx, []*models.Team{team}); err != nil {
		return nil, err
	}
	return team, nil
}

func (r *postgresTeamRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams SET
			name = $1,
			bio = $2,
			image_key = $3
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, team.Name, team.Bio, team.ImageKey, team.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "teams_name_key" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to update team %d: %w", team.ID, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	// Memberships, applications and sessions cascade via FK constraints.
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) List(ctx context.Context) ([]*models.Team, error) {
	query := `
		SELECT id, name, bio, image_key, created_at
		FROM teams
		ORDER BY name ASC`
	return r.listTeams(ctx, query)
}

func (r *postgresTeamRepository) ListByMember(ctx context.Context, userID int) ([]*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.bio, t.image_key, t.created_at
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.name ASC`
	return r.listTeams(ctx, query, userID)
}

func (r *postgresTeamRepository) ListIDsByMember(ctx context.Context, userID int) ([]int, error) {
	return r.listIDs(ctx, `SELECT team_id FROM team_members WHERE user_id = $1`, userID)
}

func (r *postgresTeamRepository) ListAllIDs(ctx context.Context) ([]int, error) {
	return r.listIDs(ctx, `SELECT id FROM teams`)
}

func (r *postgresTeamRepository) AddMember(ctx context.Context, teamID, userID int) error {
	query := `
		INSERT INTO team_members (team_id, user_id, captain)
		VALUES ($1, $2, false)
		ON CONFLICT (team_id, user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, teamID, userID); err != nil {
		return mapMembershipFKError(err)
	}
	return nil
}

func (r *postgresTeamRepository) RemoveMember(ctx context.Context, teamID, userID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresTeamRepository) SetCaptain(ctx context.Context, teamID, userID int, captain bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE team_members SET captain = $3 WHERE team_id = $1 AND user_id = $2`,
		teamID, userID, captain)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMembershipNotFound)
}

func (r *postgresTeamRepository) AddApplication(ctx context.Context, teamID, userID int) error {
	query := `
		INSERT INTO team_applications (team_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, teamID, userID); err != nil {
		return mapMembershipFKError(err)
	}
	return nil
}

func (r *postgresTeamRepository) RemoveApplication(ctx context.Context, teamID, userID int) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM team_applications WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrApplicationNotFound)
}

func (r *postgresTeamRepository) ApproveApplication(ctx context.Context, teamID, userID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin approve transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM team_applications WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return err
	}
	if err := checkAffectedRows(result, ErrApplicationNotFound); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id, captain)
		 VALUES ($1, $2, false)
		 ON CONFLICT (team_id, user_id) DO NOTHING`, teamID, userID)
	if err != nil {
		return mapMembershipFKError(err)
	}

	return tx.Commit()
}

func (r *postgresTeamRepository) listTeams(ctx context.Context, query string, args ...interface{}) ([]*models.Team, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]*models.Team, 0)
	for rows.Next() {
		team := &models.Team{}
		if err := rows.Scan(&team.ID, &team.Name, &team.Bio, &team.ImageKey, &team.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadIDSets(ctx, teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// loadIDSets fills MemberIDs/CaptainIDs/AppliedIDs for the given teams with
// two queries, regardless of how many teams are in the slice.
func (r *postgresTeamRepository) loadIDSets(ctx context.Context, teams []*models.Team) error {
	if len(teams) == 0 {
		return nil
	}

	byID := make(map[int]*models.Team, len(teams))
	teamIDs := make([]int, 0, len(teams))
	for _, t := range teams {
		t.MemberIDs = []int{}
		t.CaptainIDs = []int{}
		t.AppliedIDs = []int{}
		byID[t.ID] = t
		teamIDs = append(teamIDs, t.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT team_id, user_id, captain FROM team_members WHERE team_id = ANY($1) ORDER BY user_id`,
		pq.Array(teamIDs))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var teamID, userID int
		var captain bool
		if err := rows.Scan(&teamID, &userID, &captain); err != nil {
			return err
		}
		team := byID[teamID]
		team.MemberIDs = append(team.MemberIDs, userID)
		if captain {
			team.CaptainIDs = append(team.CaptainIDs, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	appRows, err := r.db.QueryContext(ctx,
		`SELECT team_id, user_id FROM team_applications WHERE team_id = ANY($1) ORDER BY user_id`,
		pq.Array(teamIDs))
	if err != nil {
		return err
	}
	defer appRows.Close()

	for appRows.Next() {
		var teamID, userID int
		if err := appRows.Scan(&teamID, &userID); err != nil {
			return err
		}
		byID[teamID].AppliedIDs = append(byID[teamID].AppliedIDs, userID)
	}
	return appRows.Err()
}

func (r *postgresTeamRepository) listIDs(ctx context.Context, query string, args ...interface{}) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func mapMembershipFKError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		switch pqErr.Constraint {
		case "team_members_team_id_fkey", "team_applications_team_id_fkey":
			return ErrTeamNotFound
		case "team_members_user_id_fkey", "team_applications_user_id_fkey":
			return ErrUserNotFound
		}
	}
	return err
}
