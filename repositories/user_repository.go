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
	ErrUserNotFound      = errors.New("user not found")
	ErrUserPhoneConflict = errors.New("user phone number conflict")
	ErrTooManyLookupIDs  = errors.New("too many ids for a single lookup")
)

// MaxLookupIDs caps a single ListByIDs query. The backing store's "in" query
// accepts at most 10 values; callers chunk larger sets and merge the results.
const MaxLookupIDs = 10

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByPhone(ctx context.Context, phoneNumber string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ListByIDs(ctx context.Context, ids []int) ([]models.User, error)
	ListAll(ctx context.Context) ([]models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (display_name, email, phone_number, photo_key, admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.DisplayName,
		user.Email,
		user.PhoneNumber,
		user.PhotoKey,
		user.Admin,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "users_phone_number_key" {
			return ErrUserPhoneConflict
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `
		SELECT id, display_name, email, phone_number, photo_key, admin, created_at
		FROM users
		WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

func (r *postgresUserRepository) GetByPhone(ctx context.Context, phoneNumber string) (*models.User, error) {
	query := `
		SELECT id, display_name, email, phone_number, photo_key, admin, created_at
		FROM users
		WHERE phone_number = $1`
	return r.scanUser(ctx, query, phoneNumber)
}

func (r *postgresUserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			display_name = $1,
			email = $2,
			phone_number = $3,
			photo_key = $4,
			admin = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		user.DisplayName,
		user.Email,
		user.PhoneNumber,
		user.PhotoKey,
		user.Admin,
		user.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "users_phone_number_key" {
			return ErrUserPhoneConflict
		}
		return fmt.Errorf("failed to update user %d: %w", user.ID, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

// ListByIDs returns the users whose ids are in the given set. Unknown ids are
// silently skipped. Results are ordered by the store's sort key (display
// name), not by input order. At most MaxLookupIDs ids per call.
func (r *postgresUserRepository) ListByIDs(ctx context.Context, ids []int) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	if len(ids) > MaxLookupIDs {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyLookupIDs, len(ids), MaxLookupIDs)
	}

	query := `
		SELECT id, display_name, email, phone_number, photo_key, admin, created_at
		FROM users
		WHERE id = ANY($1)
		ORDER BY display_name ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUserRows(rows)
}

func (r *postgresUserRepository) ListAll(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, display_name, email, phone_number, photo_key, admin, created_at
		FROM users
		ORDER BY display_name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanUserRows(rows)
}

func (r *postgresUserRepository) scanUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Email,
		&user.PhoneNumber,
		&user.PhotoKey,
		&user.Admin,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUserRows(rows *sql.Rows) ([]models.User, error) {
	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.DisplayName,
			&user.Email,
			&user.PhoneNumber,
			&user.PhotoKey,
			&user.Admin,
			&user.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
