// Package jwttoken is the token codec: it creates and verifies the compact
// signed expiring tokens that carry a session reference. Verify is the only
// path in the repository that decodes a token payload.
package jwttoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "accounts/pkg/domain-errors"
)

// Payload is the opaque data a token transports. Access tokens carry the
// session id and the impersonation flag; refresh tokens carry an empty
// payload by design.
type Payload struct {
	SessionID      string `json:"sessionId,omitempty"`
	IsImpersonated bool   `json:"isImpersonated,omitempty"`
}

// Claims nests the payload under "data" so the wire shape stays stable even
// if payload fields grow.
type Claims struct {
	Data Payload `json:"data"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a single symmetric secret.
type Service struct {
	secret []byte
	issuer string
}

func NewService(secret, issuer string) *Service {
	return &Service{secret: []byte(secret), issuer: issuer}
}

// Issue produces a signed token embedding payload, expiring expiresIn from
// now. A zero or negative duration yields an already-expired token; Verify
// will reject it.
func (s *Service) Issue(payload Payload, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Data: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded payload. Any
// failure (malformed token, wrong algorithm, bad signature, elapsed expiry)
// surfaces as a CodeInvalidToken domain error.
func (s *Service) Verify(tokenString string) (Payload, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.secret, nil
	})
	if err != nil {
		// Expired and malformed collapse into one answer on purpose: the
		// caller only needs "not valid", and the cause stays wrapped.
		return Payload{}, dErrors.Wrap(err, dErrors.CodeInvalidToken, "Tokens are not valid")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Payload{}, dErrors.New(dErrors.CodeInvalidToken, "Tokens are not valid")
	}
	return claims.Data, nil
}

// VerifySignature checks signature and shape but ignores expiry. Refresh
// exchanges accept an elapsed access token as long as it was genuinely
// issued here.
func (s *Service) VerifySignature(tokenString string) (Payload, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return Payload{}, dErrors.Wrap(err, dErrors.CodeInvalidToken, "Tokens are not valid")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return Payload{}, dErrors.New(dErrors.CodeInvalidToken, "Tokens are not valid")
	}
	return claims.Data, nil
}
