package services

import "errors"

// Shared error taxonomy. Handlers map these onto HTTP statuses; nothing is
// retried automatically — every failure surfaces at the call site nearest the
// user action.
var (
	// Not found
	ErrNotFound        = errors.New("requested resource not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrSessionNotFound = errors.New("session not found")

	// Validation and business rules
	ErrValidationFailed     = errors.New("validation failed")
	ErrTeamNameRequired     = errors.New("team name is required")
	ErrTeamNameConflict     = errors.New("team name is already in use")
	ErrUserPhoneConflict    = errors.New("phone number is already in use")
	ErrAlreadyMember        = errors.New("user is already a member of this team")
	ErrNotAMember           = errors.New("user is not a member of this team")
	ErrCannotRemoveCaptain  = errors.New("cannot remove a captain; demote them first")
	ErrNotAFixture          = errors.New("availability applies to fixtures only")
	ErrSessionLocked        = errors.New("session has already started; attendance can no longer be changed")
	ErrNoAttendingMembers   = errors.New("session has no attending members")
	ErrUnsupportedImageType = errors.New("unsupported image content type")

	// Authentication and authorization
	ErrAuthCodeInvalid    = errors.New("invalid or expired sign-in code")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
	ErrAdminOnly          = errors.New("only an administrator can perform this action")
	ErrCaptainOnly        = errors.New("only a team captain or an administrator can perform this action")
	ErrMembersOnly        = errors.New("only team members can perform this action")
)
