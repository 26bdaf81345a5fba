package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"faceattend/internal/domain"
)

// Service implements signup, login, session validation and logout.
type Service struct {
	users      UserStore
	sessions   SessionStore
	sessionTTL time.Duration
	bcryptCost int
	nowFunc    func() time.Time
}

// NewService creates an auth service. ttl and cost fall back to 30 days
// and bcrypt's default cost when out of range.
func NewService(users UserStore, sessions SessionStore, ttl time.Duration, cost int) *Service {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		sessionTTL: ttl,
		bcryptCost: cost,
		nowFunc:    time.Now,
	}
}

// Signup registers a new account and returns its public fields.
func (s *Service) Signup(ctx context.Context, email, password, fullName, role string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	if email == "" || password == "" || fullName == "" || role == "" {
		return User{}, domain.E(domain.KindValidation, "missing required fields")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, domain.E(domain.KindValidation, "invalid email address")
	}
	if role != RoleTeacher && role != RoleAdmin {
		return User{}, domain.E(domain.KindValidation, "invalid role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, domain.Wrap(domain.KindInternal, "hash password", err)
	}

	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.nowFunc().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u.Public(), nil
}

// Login verifies credentials and issues a session. Unknown emails and bad
// passwords collapse into the same auth error.
func (s *Service) Login(ctx context.Context, email, password string) (User, Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, Session{}, domain.E(domain.KindValidation, "email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.Is(err, domain.KindNotFound) {
			return User{}, Session{}, domain.E(domain.KindAuth, "invalid credentials")
		}
		return User{}, Session{}, err
	}

	// bcrypt comparison is constant time for matching cost/salt.
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, Session{}, domain.E(domain.KindAuth, "invalid credentials")
	}

	token, err := generateToken()
	if err != nil {
		return User{}, Session{}, domain.Wrap(domain.KindInternal, "generate session token", err)
	}

	now := s.nowFunc().UTC()
	sess := Session{
		Token:     token,
		UserID:    u.ID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return User{}, Session{}, domain.Wrap(domain.KindInternal, "store session", err)
	}
	return u.Public(), sess, nil
}

// ValidateSession resolves a token to its user, failing for unknown or
// expired tokens.
func (s *Service) ValidateSession(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, domain.E(domain.KindAuth, "missing session token")
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return User{}, domain.E(domain.KindAuth, "invalid or expired session")
	}
	if err != nil {
		return User{}, domain.Wrap(domain.KindInternal, "load session", err)
	}
	if sess.Expired(s.nowFunc()) {
		_ = s.sessions.Delete(ctx, token)
		return User{}, domain.E(domain.KindAuth, "invalid or expired session")
	}

	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if domain.Is(err, domain.KindNotFound) {
			return User{}, domain.E(domain.KindAuth, "invalid or expired session")
		}
		return User{}, err
	}
	return u.Public(), nil
}

// Logout revokes a session. Revoking an absent token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return domain.Wrap(domain.KindInternal, "delete session", err)
	}
	return nil
}

// generateToken returns a 256-bit hex token from crypto/rand.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
