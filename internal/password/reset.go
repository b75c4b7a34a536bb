package password

import (
	"context"
	"errors"
	"strings"

	"accounts/internal/accounts/models"
	dErrors "accounts/pkg/domain-errors"
	"accounts/pkg/platform/sentinel"
	"accounts/pkg/secrets"
)

// Out-of-band flows. Token delivery (email) is an external collaborator;
// these methods only mint tokens, book them in storage, and redeem them.
// Expiry of booked tokens is enforced by the storage adapter using the
// configured expirations.

// CreateResetPasswordToken mints a reset token for the user owning email
// and books it with the adapter. The caller delivers it out of band.
func (s *Service) CreateResetPasswordToken(ctx context.Context, email string) (string, error) {
	address := strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.FindUserByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not look up user")
	}

	token, err := secrets.RandomToken(0)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate reset token")
	}
	if err := s.store.AddResetPasswordToken(ctx, user.ID, address, token, "reset"); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not store reset token")
	}
	return token, nil
}

// ResetPassword redeems a reset token, replacing the stored credential with
// the hash of newPassword and invalidating every open session of the user.
func (s *Service) ResetPassword(ctx context.Context, token string, newPassword models.Password) error {
	user, err := s.store.FindUserByResetPasswordToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return dErrors.New(dErrors.CodeNotFound, "Reset password link expired")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not look up reset token")
	}

	if newPassword.Plain != "" && !s.options.ValidatePassword(newPassword.Plain) {
		return dErrors.New(dErrors.CodeValidation, "Invalid password")
	}
	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.store.SetResetPassword(ctx, user.ID, user.Email, hash, token); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "Reset password link expired")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not reset password")
	}

	// A password reset proves control of the account; every session issued
	// under the old credential stops being trustworthy.
	if err := s.store.InvalidateAllSessions(ctx, user.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not invalidate sessions")
	}
	return nil
}

// CreateEmailVerificationToken mints a verification token for one of the
// user's addresses and books it with the adapter.
func (s *Service) CreateEmailVerificationToken(ctx context.Context, userID, email string) (string, error) {
	token, err := secrets.RandomToken(0)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate verification token")
	}
	address := strings.ToLower(strings.TrimSpace(email))
	if err := s.store.AddEmailVerificationToken(ctx, userID, address, token); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not store verification token")
	}
	return token, nil
}

// VerifyEmail redeems a verification token and flags the address verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.store.FindUserByEmailVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return dErrors.New(dErrors.CodeNotFound, "Verify email link expired")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not look up verification token")
	}

	// The token records which address it was minted for; the memory adapter
	// keys it by user, so verify the first unverified address matching the
	// booking. Adapters resolve the address from their own bookkeeping.
	if err := s.store.VerifyEmail(ctx, user.ID, verificationAddress(user)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "Verify email link expired")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify email")
	}
	return nil
}

func verificationAddress(user *models.User) string {
	for _, rec := range user.Emails {
		if !rec.Verified {
			return rec.Address
		}
	}
	return user.Email
}
