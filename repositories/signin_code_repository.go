package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/teamtrack/teamtrack/models"
)

var ErrSignInCodeNotFound = errors.New("sign-in code not found")

type SignInCodeRepository interface {
	// Upsert replaces any pending code for the phone number.
	Upsert(ctx context.Context, code *models.SignInCode) error
	GetByPhone(ctx context.Context, phoneNumber string) (*models.SignInCode, error)
	Delete(ctx context.Context, phoneNumber string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type postgresSignInCodeRepository struct {
	db *sql.DB
}

func NewPostgresSignInCodeRepository(db *sql.DB) SignInCodeRepository {
	return &postgresSignInCodeRepository{db: db}
}

func (r *postgresSignInCodeRepository) Upsert(ctx context.Context, code *models.SignInCode) error {
	query := `
		INSERT INTO auth_codes (phone_number, code_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone_number) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    expires_at = EXCLUDED.expires_at,
		    created_at = now()
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		code.PhoneNumber,
		code.CodeHash,
		code.ExpiresAt,
	).Scan(&code.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sign-in code: %w", err)
	}
	return nil
}

func (r *postgresSignInCodeRepository) GetByPhone(ctx context.Context, phoneNumber string) (*models.SignInCode, error) {
	query := `
		SELECT phone_number, code_hash, expires_at, created_at
		FROM auth_codes
		WHERE phone_number = $1`

	code := &models.SignInCode{}
	err := r.db.QueryRowContext(ctx, query, phoneNumber).Scan(
		&code.PhoneNumber,
		&code.CodeHash,
		&code.ExpiresAt,
		&code.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSignInCodeNotFound
		}
		return nil, err
	}
	return code, nil
}

func (r *postgresSignInCodeRepository) Delete(ctx context.Context, phoneNumber string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auth_codes WHERE phone_number = $1`, phoneNumber)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSignInCodeNotFound)
}

func (r *postgresSignInCodeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM auth_codes WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
