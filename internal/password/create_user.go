package password

import (
	"context"
	"errors"
	"strings"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	dErrors "accounts/pkg/domain-errors"
	"accounts/pkg/platform/sentinel"
)

// CreateUser validates and registers a new user, returning the storage
// generated id. At least one of username and email must pass its validator;
// uniqueness is checked against storage before the write and enforced again
// by the adapter to close the race.
func (s *Service) CreateUser(ctx context.Context, user models.CreateUser) (string, error) {
	username := strings.TrimSpace(user.Username)
	email := strings.TrimSpace(user.Email)

	if !s.options.ValidateUsername(username) && !s.options.ValidateEmail(email) {
		return "", dErrors.New(dErrors.CodeValidation, "Username or Email is required")
	}

	if username != "" {
		if _, err := s.store.FindUserByUsername(ctx, username); err == nil {
			return "", dErrors.New(dErrors.CodeConflict, "Username already exists")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not check username")
		}
	}

	if email != "" {
		if _, err := s.store.FindUserByEmail(ctx, strings.ToLower(email)); err == nil {
			return "", dErrors.New(dErrors.CodeConflict, "Email already exists")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not check email")
		}
	}

	var passwordHash string
	if !user.Password.IsZero() {
		if user.Password.Plain != "" && !s.options.ValidatePassword(user.Password.Plain) {
			return "", dErrors.New(dErrors.CodeValidation, "Invalid password")
		}
		hash, err := s.hashPassword(user.Password)
		if err != nil {
			return "", err
		}
		passwordHash = hash
	}

	candidate := store.NewUser{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Profile:      user.Profile,
	}

	if s.options.ValidateNewUser != nil {
		ok, err := s.options.ValidateNewUser(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", dErrors.New(dErrors.CodeValidation, "User invalid")
		}
	}

	id, err := s.store.CreateUser(ctx, candidate)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return "", dErrors.New(dErrors.CodeConflict, "Username or Email already exists")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not create user")
	}
	return id, nil
}

// SetUsername changes a user's username. Use this instead of writing to
// storage directly; it is the only sanctioned mutation path.
func (s *Service) SetUsername(ctx context.Context, userID, newUsername string) error {
	if !s.options.ValidateUsername(newUsername) {
		return dErrors.New(dErrors.CodeValidation, "Invalid username")
	}
	if err := s.store.SetUsername(ctx, userID, strings.TrimSpace(newUsername)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "Username already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not set username")
	}
	return nil
}

// AddEmail attaches an additional address to the user, unverified unless
// stated otherwise.
func (s *Service) AddEmail(ctx context.Context, userID, newEmail string, verified bool) error {
	if !s.options.ValidateEmail(newEmail) {
		return dErrors.New(dErrors.CodeValidation, "Invalid email")
	}
	if err := s.store.AddEmail(ctx, userID, strings.ToLower(strings.TrimSpace(newEmail)), verified); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "Email already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not add email")
	}
	return nil
}

// RemoveEmail detaches an address from the user.
func (s *Service) RemoveEmail(ctx context.Context, userID, email string) error {
	if err := s.store.RemoveEmail(ctx, userID, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not remove email")
	}
	return nil
}
