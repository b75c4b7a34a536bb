// Package memory is the reference in-memory storage adapter. It favors
// clarity over performance and doubles as the test adapter for the core.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"accounts/internal/accounts/models"
	"accounts/internal/accounts/store"
	"accounts/pkg/platform/sentinel"
)

type resetRecord struct {
	userID string
	email  string
	reason string
	added  time.Time
}

type verificationRecord struct {
	userID string
	email  string
	added  time.Time
}

// Store keeps all records behind a single RWMutex. Values handed out are
// deep copies so callers can never mutate stored state in place.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	passwords    map[string]string
	sessions     map[string]*models.Session
	resetTokens  map[string]resetRecord
	verifyTokens map[string]verificationRecord
	now          func() time.Time
}

// Option adjusts construction; tests inject a fake clock.
type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:        make(map[string]*models.User),
		passwords:    make(map[string]string),
		sessions:     make(map[string]*models.Session),
		resetTokens:  make(map[string]resetRecord),
		verifyTokens: make(map[string]verificationRecord),
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ store.Store = (*Store)(nil)

func cloneUser(u *models.User) *models.User {
	clone := *u
	if u.Emails != nil {
		clone.Emails = append([]models.EmailRecord(nil), u.Emails...)
	}
	if u.Profile != nil {
		clone.Profile = make(map[string]any, len(u.Profile))
		for k, v := range u.Profile {
			clone.Profile[k] = v
		}
	}
	if u.Services != nil {
		clone.Services = make(map[string]map[string]any, len(u.Services))
		for name, data := range u.Services {
			inner := make(map[string]any, len(data))
			for k, v := range data {
				inner[k] = v
			}
			clone.Services[name] = inner
		}
	}
	return &clone
}

func (s *Store) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return cloneUser(user), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	needle := strings.ToLower(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.ToLower(user.Email) == needle {
			return cloneUser(user), nil
		}
		for _, rec := range user.Emails {
			if strings.ToLower(rec.Address) == needle {
				return cloneUser(user), nil
			}
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) FindUserByServiceID(_ context.Context, service, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if data, ok := user.Services[service]; ok {
			if svcID, ok := data["id"].(string); ok && svcID == id {
				return cloneUser(user), nil
			}
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, candidate store.NewUser) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if candidate.Username != "" && user.Username == candidate.Username {
			return "", sentinel.ErrConflict
		}
		if candidate.Email != "" && strings.EqualFold(user.Email, candidate.Email) {
			return "", sentinel.ErrConflict
		}
	}

	id := uuid.NewString()
	user := &models.User{
		ID:       id,
		Username: candidate.Username,
		Email:    strings.ToLower(candidate.Email),
		Profile:  candidate.Profile,
	}
	if user.Email != "" {
		user.Emails = []models.EmailRecord{{Address: user.Email}}
	}
	s.users[id] = user
	if candidate.PasswordHash != "" {
		s.passwords[id] = candidate.PasswordHash
	}
	return id, nil
}

func (s *Store) SetUsername(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for id, other := range s.users {
		if id != userID && other.Username == username {
			return sentinel.ErrConflict
		}
	}
	user.Username = username
	return nil
}

func (s *Store) SetProfile(_ context.Context, userID string, profile map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.Profile = profile
	return nil
}

func (s *Store) SetService(_ context.Context, userID, service string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if user.Services == nil {
		user.Services = make(map[string]map[string]any)
	}
	user.Services[service] = data
	return nil
}

func (s *Store) FindPasswordHash(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if hash, ok := s.passwords[userID]; ok {
		return hash, nil
	}
	return "", sentinel.ErrNotFound
}

func (s *Store) SetPassword(_ context.Context, userID, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	s.passwords[userID] = newHash
	return nil
}

func (s *Store) FindUserByResetPasswordToken(_ context.Context, token string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.resetTokens[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if user, ok := s.users[rec.userID]; ok {
		return cloneUser(user), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) AddResetPasswordToken(_ context.Context, userID, email, token, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	s.resetTokens[token] = resetRecord{userID: userID, email: email, reason: reason, added: s.now()}
	return nil
}

func (s *Store) SetResetPassword(_ context.Context, userID, email, newHash, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.resetTokens[token]
	if !ok || rec.userID != userID {
		return sentinel.ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	s.passwords[userID] = newHash
	delete(s.resetTokens, token)
	return nil
}

func (s *Store) AddEmail(_ context.Context, userID, newEmail string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	address := strings.ToLower(newEmail)
	for _, rec := range user.Emails {
		if rec.Address == address {
			return sentinel.ErrConflict
		}
	}
	user.Emails = append(user.Emails, models.EmailRecord{Address: address, Verified: verified})
	if user.Email == "" {
		user.Email = address
	}
	return nil
}

func (s *Store) RemoveEmail(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	address := strings.ToLower(email)
	kept := user.Emails[:0]
	removed := false
	for _, rec := range user.Emails {
		if rec.Address == address {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return sentinel.ErrNotFound
	}
	user.Emails = kept
	if user.Email == address {
		user.Email = ""
		if len(user.Emails) > 0 {
			user.Email = user.Emails[0].Address
		}
	}
	return nil
}

func (s *Store) VerifyEmail(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	address := strings.ToLower(email)
	for i := range user.Emails {
		if user.Emails[i].Address == address {
			user.Emails[i].Verified = true
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *Store) FindUserByEmailVerificationToken(_ context.Context, token string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.verifyTokens[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if user, ok := s.users[rec.userID]; ok {
		return cloneUser(user), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) AddEmailVerificationToken(_ context.Context, userID, email, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return sentinel.ErrNotFound
	}
	s.verifyTokens[token] = verificationRecord{userID: userID, email: email, added: s.now()}
	return nil
}

func (s *Store) CreateSession(_ context.Context, userID, ip, userAgent string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	now := s.now()
	s.sessions[id] = &models.Session{
		ID:        id,
		UserID:    userID,
		Valid:     true,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (s *Store) FindSessionByID(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[sessionID]; ok {
		clone := *session
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) UpdateSession(_ context.Context, sessionID, ip, userAgent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	session.IP = ip
	session.UserAgent = userAgent
	session.UpdatedAt = s.now()
	return nil
}

func (s *Store) InvalidateSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	session.Valid = false
	session.UpdatedAt = s.now()
	return nil
}

func (s *Store) InvalidateAllSessions(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, session := range s.sessions {
		if session.UserID == userID && session.Valid {
			session.Valid = false
			session.UpdatedAt = now
		}
	}
	return nil
}

// DeleteSession removes a session record outright. It exists so tests can
// model the "session row gone but token still circulating" anomaly.
func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
