package password

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/asaskevich/govalidator"

	"accounts/internal/accounts/store"
	"accounts/pkg/secrets"
)

// Options enumerates every knob of the password credential service. Zero
// values fall back to the documented defaults at construction time; invalid
// combinations are rejected by New rather than discovered at call time.
type Options struct {
	// HashAlgorithm selects the optional fast digest applied before the
	// slow storage hash. Empty means the raw password feeds bcrypt
	// directly.
	HashAlgorithm secrets.Algorithm

	// BcryptCost tunes the adaptive hash. 0 uses the library default.
	BcryptCost int

	// MinimumPasswordLength applies to plaintext passwords. Default 7.
	MinimumPasswordLength int

	// ResetTokenExpiration bounds password-reset tokens. Default 3 days.
	ResetTokenExpiration time.Duration

	// EnrollTokenExpiration bounds enrollment tokens. Default 30 days.
	EnrollTokenExpiration time.Duration

	// ValidateEmail, ValidateUsername and ValidatePassword gate their
	// fields. Whitespace-only input counts as absent for all three.
	ValidateEmail    func(email string) bool
	ValidateUsername func(username string) bool
	ValidatePassword func(password string) bool

	// ValidateNewUser, when set, inspects the assembled candidate right
	// before persistence. Returning false rejects the registration with
	// "User invalid"; an error propagates unchanged. Absent means no-op.
	ValidateNewUser func(ctx context.Context, candidate store.NewUser) (bool, error)
}

const (
	defaultMinimumPasswordLength = 7
	defaultResetTokenExpiration  = 3 * 24 * time.Hour
	defaultEnrollTokenExpiration = 30 * 24 * time.Hour
)

func (o *Options) applyDefaults() {
	if o.MinimumPasswordLength == 0 {
		o.MinimumPasswordLength = defaultMinimumPasswordLength
	}
	if o.ResetTokenExpiration == 0 {
		o.ResetTokenExpiration = defaultResetTokenExpiration
	}
	if o.EnrollTokenExpiration == 0 {
		o.EnrollTokenExpiration = defaultEnrollTokenExpiration
	}
	if o.ValidateEmail == nil {
		o.ValidateEmail = defaultValidateEmail
	}
	if o.ValidateUsername == nil {
		o.ValidateUsername = defaultValidateUsername
	}
	if o.ValidatePassword == nil {
		minLen := o.MinimumPasswordLength
		o.ValidatePassword = func(password string) bool {
			return len(strings.TrimSpace(password)) >= minLen
		}
	}
}

func defaultValidateEmail(email string) bool {
	trimmed := strings.TrimSpace(email)
	return trimmed != "" && govalidator.IsEmail(trimmed)
}

// defaultValidateUsername requires a leading letter followed by
// alphanumerics only.
func defaultValidateUsername(username string) bool {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return false
	}
	for i, r := range trimmed {
		if i == 0 {
			if !unicode.IsLetter(r) || r > unicode.MaxASCII {
				return false
			}
			continue
		}
		if r > unicode.MaxASCII || (!unicode.IsLetter(r) && !unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

// IsEmail is the disambiguation rule for free-form login identifiers: input
// matching an email address is treated as an email, anything else as a
// username.
func IsEmail(input string) bool {
	return input != "" && govalidator.IsEmail(input)
}
