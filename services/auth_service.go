package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/repositories"
)

const (
	signInCodeLength = 6
	signInCodeTTL    = 10 * time.Minute
)

// CodeSender delivers a one-time sign-in code to a phone number. The actual
// SMS gateway is an external collaborator; the default implementation just
// logs the code for local development.
type CodeSender interface {
	SendCode(ctx context.Context, phoneNumber, code string) error
}

type logCodeSender struct {
	logger *slog.Logger
}

func NewLogCodeSender(logger *slog.Logger) CodeSender {
	return &logCodeSender{logger: logger}
}

func (s *logCodeSender) SendCode(ctx context.Context, phoneNumber, code string) error {
	s.logger.InfoContext(ctx, "sign-in code issued",
		slog.String("phone_number", phoneNumber),
		slog.String("code", code),
	)
	return nil
}

type VerifyInput struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type AuthService interface {
	// RequestCode issues a fresh one-time code for the phone number,
	// replacing any pending one.
	RequestCode(ctx context.Context, phoneNumber string) error
	// VerifySignIn checks the code and resolves the principal to a profile:
	// created on first sign-in, re-synced with the supplied contact details
	// otherwise.
	VerifySignIn(ctx context.Context, input VerifyInput) (*models.User, error)
	// SweepExpiredCodes removes codes past their expiry, returning how many
	// were deleted. Run periodically from the process scheduler.
	SweepExpiredCodes(ctx context.Context) (int64, error)
}

type authService struct {
	userRepo repositories.UserRepository
	codeRepo repositories.SignInCodeRepository
	sender   CodeSender
}

func NewAuthService(
	userRepo repositories.UserRepository,
	codeRepo repositories.SignInCodeRepository,
	sender CodeSender,
) AuthService {
	return &authService{
		userRepo: userRepo,
		codeRepo: codeRepo,
		sender:   sender,
	}
}

func (s *authService) RequestCode(ctx context.Context, phoneNumber string) error {
	if phoneNumber == "" {
		return fmt.Errorf("%w: phone number is required", ErrValidationFailed)
	}

	code, err := generateNumericCode(signInCodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate sign-in code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash sign-in code: %w", err)
	}

	err = s.codeRepo.Upsert(ctx, &models.SignInCode{
		PhoneNumber: phoneNumber,
		CodeHash:    string(hash),
		ExpiresAt:   time.Now().Add(signInCodeTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to store sign-in code: %w", err)
	}

	return s.sender.SendCode(ctx, phoneNumber, code)
}

func (s *authService) VerifySignIn(ctx context.Context, input VerifyInput) (*models.User, error) {
	if input.PhoneNumber == "" || input.Code == "" {
		return nil, fmt.Errorf("%w: phone number and code are required", ErrValidationFailed)
	}

	pending, err := s.codeRepo.GetByPhone(ctx, input.PhoneNumber)
	if err != nil {
		if errors.Is(err, repositories.ErrSignInCodeNotFound) {
			return nil, ErrAuthCodeInvalid
		}
		return nil, fmt.Errorf("failed to load sign-in code: %w", err)
	}
	if time.Now().After(pending.ExpiresAt) {
		return nil, ErrAuthCodeInvalid
	}
	if bcrypt.CompareHashAndPassword([]byte(pending.CodeHash), []byte(input.Code)) != nil {
		return nil, ErrAuthCodeInvalid
	}

	// Codes are single use. A failed delete is not fatal: the code expires on
	// its own and DeleteExpired sweeps leftovers.
	if err := s.codeRepo.Delete(ctx, input.PhoneNumber); err != nil &&
		!errors.Is(err, repositories.ErrSignInCodeNotFound) {
		return nil, fmt.Errorf("failed to consume sign-in code: %w", err)
	}

	return s.resolveIdentity(ctx, input)
}

func (s *authService) SweepExpiredCodes(ctx context.Context) (int64, error) {
	n, err := s.codeRepo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sign-in codes: %w", err)
	}
	return n, nil
}

// resolveIdentity maps an authenticated phone number to a profile record:
// created with admin=false on first sign-in, contact details re-synced on
// later sign-ins when the provider reports fresher values.
func (s *authService) resolveIdentity(ctx context.Context, input VerifyInput) (*models.User, error) {
	user, err := s.userRepo.GetByPhone(ctx, input.PhoneNumber)
	if err != nil {
		if !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user by phone: %w", err)
		}
		user = &models.User{
			DisplayName: input.DisplayName,
			Email:       input.Email,
			PhoneNumber: input.PhoneNumber,
			Admin:       false,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user profile: %w", err)
		}
		return user, nil
	}

	changed := false
	if input.DisplayName != "" && input.DisplayName != user.DisplayName {
		user.DisplayName = input.DisplayName
		changed = true
	}
	if input.Email != "" && input.Email != user.Email {
		user.Email = input.Email
		changed = true
	}
	if changed {
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to sync user profile: %w", err)
		}
	}
	return user, nil
}

func generateNumericCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
