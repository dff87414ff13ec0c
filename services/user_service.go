package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/repositories"
	"github.com/teamtrack/teamtrack/storage"
)

type UpdateProfileInput struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
}

type UserService interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
	// UpdateProfile edits a profile; only the user themselves or an admin may
	// do so.
	UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput, currentUserID int) (*models.User, error)
	UploadPhoto(ctx context.Context, userID int, contentType string, body io.Reader, currentUserID int) (*models.User, error)
	// ListDirectory returns every profile, for captain-driven member picking.
	ListDirectory(ctx context.Context) ([]models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
	uploader storage.FileUploader
}

func NewUserService(userRepo repositories.UserRepository, uploader storage.FileUploader) UserService {
	return &userService{
		userRepo: userRepo,
		uploader: uploader,
	}
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	populateUserPhotoURL(user, s.uploader)
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID int, input UpdateProfileInput, currentUserID int) (*models.User, error) {
	current, err := s.userRepo.GetByID(ctx, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to identify current user: %w", err)
	}
	if currentUserID != userID && !current.Admin {
		return nil, ErrForbiddenOperation
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if name == "" {
			return nil, fmt.Errorf("%w: display name cannot be empty", ErrValidationFailed)
		}
		user.DisplayName = name
	}
	if input.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.PhoneNumber != nil {
		phone := strings.TrimSpace(*input.PhoneNumber)
		if phone == "" {
			return nil, fmt.Errorf("%w: phone number cannot be empty", ErrValidationFailed)
		}
		user.PhoneNumber = phone
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserPhoneConflict) {
			return nil, ErrUserPhoneConflict
		}
		return nil, fmt.Errorf("failed to update user %d: %w", userID, err)
	}

	populateUserPhotoURL(user, s.uploader)
	return user, nil
}

func (s *userService) UploadPhoto(ctx context.Context, userID int, contentType string, body io.Reader, currentUserID int) (*models.User, error) {
	current, err := s.userRepo.GetByID(ctx, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to identify current user: %w", err)
	}
	if currentUserID != userID && !current.Admin {
		return nil, ErrForbiddenOperation
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("users/%s%s", uuid.NewString(), ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload profile photo: %w", err)
	}

	oldKey := user.PhotoKey
	user.PhotoKey = &key
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store photo key: %w", err)
	}

	if oldKey != nil && *oldKey != "" {
		// Old photo removal is best effort; a dangling object is harmless.
		_ = s.uploader.Delete(ctx, *oldKey)
	}

	populateUserPhotoURL(user, s.uploader)
	return user, nil
}

func (s *userService) ListDirectory(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		populateUserPhotoURL(&users[i], s.uploader)
	}
	return users, nil
}
