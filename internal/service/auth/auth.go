package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/models"
	"github.com/Skotchmaster/bookstore/internal/repo"
	"github.com/Skotchmaster/bookstore/pkg/hash"
	"github.com/Skotchmaster/bookstore/pkg/logging"
	"github.com/Skotchmaster/bookstore/pkg/tokens"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	minPasswordLen = 6
)

type Service struct {
	repo       *repo.GormRepo
	signer     *tokens.Signer
	refreshTTL time.Duration
	events     events.Publisher
	now        func() time.Time
}

type Option func(*Service)

// WithClock drives both refresh expiry and access token validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.signer = s.signer.WithClock(now)
	}
}

func WithAccessTTL(d time.Duration) Option {
	return func(s *Service) { s.signer = s.signer.WithTTL(d) }
}

func WithRefreshTTL(d time.Duration) Option {
	return func(s *Service) { s.refreshTTL = d }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func New(r *repo.GormRepo, signer *tokens.Signer, opts ...Option) *Service {
	s := &Service{
		repo:       r,
		signer:     signer,
		refreshTTL: DefaultRefreshTTL,
		events:     events.Nop{},
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type UserInfo struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

func NewUserInfo(u *models.User) UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	User             UserInfo  `json:"user"`
}

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
}

func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	user, err := s.repo.FindActiveUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if repo.IsNotFound(err) {
			l.Warn("login_failed", "status", 401, "reason", "unknown user")
			return nil, domain.ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, s.repo, user)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return nil, err
	}
	l.Info("login_ok", "user_id", user.ID)
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is deactivated and a new pair issued,
// all in one transaction. A token can be rotated at most once.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")
	if raw == "" {
		return nil, domain.ErrInvalidRefreshToken
	}

	now := s.now().UTC()
	var pair *TokenPair
	err := s.repo.Tx(ctx, func(tx *repo.GormRepo) error {
		stored, err := tx.FindRefreshByHash(ctx, tokens.HashRefreshToken(raw))
		if err != nil {
			if repo.IsNotFound(err) {
				return domain.ErrInvalidRefreshToken
			}
			return err
		}
		if !stored.IsActive || !now.Before(stored.ExpiresAt) {
			return domain.ErrInvalidRefreshToken
		}

		ok, err := tx.DeactivateRefresh(ctx, stored.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidRefreshToken
		}

		user, err := tx.GetUserByID(ctx, stored.UserID)
		if err != nil {
			if repo.IsNotFound(err) {
				return domain.ErrInvalidRefreshToken
			}
			return err
		}
		if !user.IsActive {
			return domain.ErrInvalidRefreshToken
		}

		pair, err = s.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		if domain.Known(err) {
			l.Warn("refresh_failed", "status", 401, "reason", err.Error())
		} else {
			l.Error("refresh_failed", "status", 500, "error", err)
		}
		return nil, err
	}
	return pair, nil
}

// Revoke is false when the token was unknown or already inactive.
func (s *Service) Revoke(ctx context.Context, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return s.repo.RevokeRefreshByHash(ctx, tokens.HashRefreshToken(raw), s.now().UTC())
}

func (s *Service) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.RevokeAllRefreshForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).Info("refresh_tokens_revoked", "svc", "auth.revoke_all", "user_id", userID, "count", n)
	return n, nil
}

// ValidateAccess checks an access token without touching storage.
func (s *Service) ValidateAccess(token string) (domain.Principal, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return domain.Principal{}, err
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("access token: %w", err)
	}
	if claims.UserID == 0 {
		return domain.Principal{}, fmt.Errorf("access token: missing uid")
	}
	return domain.Principal{UserID: claims.UserID, Username: claims.Username, Role: role}, nil
}

// Register creates an account. The admin role is only granted when actor is an admin;
// anyone else asking for it gets a customer account.
func (s *Service) Register(ctx context.Context, in RegisterInput, actor *domain.Principal) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case len(username) < 3 || len(username) > 50:
		return nil, fmt.Errorf("%w: username must be 3-50 characters", domain.ErrValidation)
	case !validEmail(email):
		return nil, fmt.Errorf("%w: email is invalid", domain.ErrValidation)
	case len(in.Password) < minPasswordLen:
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	case in.Password != in.ConfirmPassword:
		return nil, fmt.Errorf("%w: passwords do not match", domain.ErrValidation)
	}

	role := models.RoleCustomer
	if in.Role != "" {
		requested, err := models.ParseRole(strings.ToLower(in.Role))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		if requested == models.RoleAdmin && (actor == nil || !actor.IsAdmin()) {
			l.Warn("register_role_downgraded", "requested", requested)
		} else {
			role = requested
		}
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.CreateUserIfNotExists(ctx, user); err != nil {
		if domain.Known(err) {
			l.Warn("register_failed", "status", 409, "reason", "username or email taken")
			return nil, fmt.Errorf("%w: username or email already registered", domain.ErrConflict)
		}
		l.Error("register_failed", "status", 500, "error", err)
		return nil, err
	}

	events.Notify(ctx, s.events, events.TopicUsers, user.ID, events.UserRegistered{
		Type:     events.TypeUserRegistered,
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		At:       s.now().UTC(),
	})
	l.Info("user_registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// ChangePassword also signs the user out everywhere by revoking every refresh token.
func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.change_password", "user_id", userID)

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
		}
		return err
	}
	if !hash.CheckPassword(user.PasswordHash, oldPassword) {
		l.Warn("change_password_failed", "status", 401, "reason", "wrong password")
		return domain.ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLen)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	err = s.repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if err := tx.UpdatePasswordHash(ctx, userID, pwHash); err != nil {
			return err
		}
		_, err := tx.RevokeAllRefreshForUser(ctx, userID, now)
		return err
	})
	if err != nil {
		l.Error("change_password_failed", "status", 500, "error", err)
		return err
	}
	l.Info("password_changed")
	return nil
}

func (s *Service) Me(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
		}
		return nil, err
	}
	return u, nil
}

// PurgeExpired deletes tokens that expired or were revoked before the cutoff.
func (s *Service) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.PurgeRefreshTokens(ctx, before.UTC())
}

// EnsureAdmin creates the bootstrap admin unless the username or email already exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return false, err
	}
	err = s.repo.CreateUserIfNotExists(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	})
	switch {
	case err == nil:
		return true, nil
	case domain.Known(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) issuePair(ctx context.Context, r *repo.GormRepo, user *models.User) (*TokenPair, error) {
	access, exp, err := s.signer.Issue(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}
	raw, err := tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rt := &models.RefreshToken{
		TokenHash: tokens.HashRefreshToken(raw),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		IsActive:  true,
		CreatedAt: now,
	}
	if err := r.CreateRefreshToken(ctx, rt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		ExpiresAt:        exp,
		RefreshExpiresAt: rt.ExpiresAt,
		User:             NewUserInfo(user),
	}, nil
}

func validEmail(s string) bool {
	if s == "" || len(s) > 100 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
