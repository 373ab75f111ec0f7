package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/logx"
	"finapi/pkg/store"
)

// Session is returned by register, login and refresh.
type Session struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type Service struct {
	store      store.Store
	issuer     *Issuer
	refreshTTL time.Duration
	validate   *validator.Validate
	log        *logx.Logger
	now        func() time.Time
}

func NewService(st store.Store, issuer *Issuer, refreshTTL time.Duration, log *logx.Logger) *Service {
	if log == nil {
		log = logx.Nop()
	}
	return &Service{
		store:      st,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		validate:   validator.New(),
		log:        log.WithComponent(logx.ComponentAuth),
		now:        time.Now,
	}
}

// SetClock overrides the time source for tokens issued and checked by s.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.issuer.now = now
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	var fields []apperr.FieldError
	if name == "" || len([]rune(name)) > 100 {
		fields = append(fields, apperr.FieldError{Field: "name", Message: "name is required and must be at most 100 characters"})
	}
	if err := s.validate.Var(email, "required,email,max=255"); err != nil {
		fields = append(fields, apperr.FieldError{Field: "email", Message: "email must be a valid address"})
	}
	if len(in.Password) < MinPasswordLength {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password must be at least 6 characters"})
	} else if len(in.Password) > MaxPasswordLength {
		fields = append(fields, apperr.FieldError{Field: "password", Message: "password must be at most 72 bytes"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields[0].Message, fields...)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, err
	}
	s.log.InfoContext(ctx, "user registered", logx.FieldUserID, u.ID)
	return s.issueWith(ctx, s.store, u)
}

// dummyHash keeps the cost of a failed lookup close to a failed compare.
var dummyHash, _ = HashPassword("not-a-real-password")

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
		CheckPassword(dummyHash, password)
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	return s.issueWith(ctx, s.store, u)
}

func (s *Service) issueWith(ctx context.Context, st store.Store, u *models.User) (*Session, error) {
	access, exp, err := s.issuer.Issue(u)
	if err != nil {
		return nil, err
	}
	raw, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	rt := &models.RefreshToken{UserID: u.ID, TokenHash: hash, ExpiresAt: s.now().Add(s.refreshTTL)}
	if err := st.CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, ExpiresAt: exp, RefreshToken: raw}, nil
}

// Refresh exchanges a refresh token for a new session. The presented token
// is revoked in the same unit that stores its replacement, so it can be
// used once.
func (s *Service) Refresh(ctx context.Context, raw string) (*Session, error) {
	var sess *Session
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		rt, err := tx.RefreshTokenByHash(ctx, HashToken(raw))
		if err != nil || !rt.Usable(s.now()) {
			return apperr.Unauthenticated("invalid or expired refresh token")
		}
		u, err := tx.UserByID(ctx, rt.UserID)
		if err != nil {
			return apperr.Unauthenticated("invalid or expired refresh token")
		}
		// A concurrent refresh that revoked the token first wins.
		if err := tx.RevokeRefreshToken(ctx, rt.ID); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.Unauthenticated("invalid or expired refresh token")
			}
			return err
		}
		sess, err = s.issueWith(ctx, tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout revokes a refresh token. Revoking an already revoked token is not
// an error.
func (s *Service) Logout(ctx context.Context, raw string) error {
	rt, err := s.store.RefreshTokenByHash(ctx, HashToken(raw))
	if err != nil {
		return err
	}
	if rt.Revoked {
		return nil
	}
	if err := s.store.RevokeRefreshToken(ctx, rt.ID); err != nil && apperr.KindOf(err) != apperr.KindNotFound {
		return err
	}
	return nil
}

// Authenticate resolves a bearer token to the caller, rejecting tokens of
// users that no longer exist.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.UserByID(ctx, id.ID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthenticated("user no longer exists")
		}
		return nil, err
	}
	return &Identity{ID: u.ID, Email: u.Email, Name: u.Name}, nil
}

func (s *Service) Profile(ctx context.Context, userID uint) (*models.User, error) {
	return s.store.UserByID(ctx, userID)
}

// SetPassword replaces a user's password hash.
func (s *Service) SetPassword(ctx context.Context, email, password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Field("password", "password must be at least 6 characters")
	}
	if len(password) > MaxPasswordLength {
		return apperr.Field("password", "password must be at most 72 bytes")
	}
	u, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, u.ID, hash)
}
