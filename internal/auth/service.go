package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// dummyPasswordHash is verified when a login names an unknown account, so the
// response time does not reveal whether the username exists. It is not a real
// credential and the verification result is discarded.
const dummyPasswordHash = "$2a$10$77.yXRIX3dTplTHBCy9NO.Nm4TH/Nv9wF1cZQZb8cXZcbHkjs7Oqm"

// Service issues, refreshes and validates session tokens for principals. It is
// the single place where the codec, the principal store, the account guard,
// the credential hasher and the revocation set meet.
type Service struct {
	store   PrincipalStore
	codec   *Codec
	guard   *Guard
	hasher  CredentialHasher
	revoker Revoker

	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithHasher overrides the credential hasher.
func WithHasher(h CredentialHasher) ServiceOption {
	return func(s *Service) error {
		if h != nil {
			s.hasher = h
		}
		return nil
	}
}

// WithRevoker overrides the revocation set.
func WithRevoker(r Revoker) ServiceOption {
	return func(s *Service) error {
		s.revoker = r
		return nil
	}
}

// WithGuard overrides the account guard.
func WithGuard(g *Guard) ServiceOption {
	return func(s *Service) error {
		if g != nil {
			s.guard = g
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service. Unset collaborators get working defaults:
// bcrypt hashing, an in-process revocation set sized to the refresh lifetime,
// and a guard with the standard lockout threshold.
func NewService(store PrincipalStore, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: principal store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:      store,
		codec:      codec,
		hasher:     BcryptHasher{},
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if svc.accessTTL >= svc.refreshTTL {
		return nil, errors.New("auth: access TTL must be shorter than refresh TTL")
	}
	if svc.guard == nil {
		svc.guard = NewGuard(store, WithGuardClock(svc.now))
	}
	if svc.revoker == nil {
		svc.revoker = NewMemoryRevoker(svc.refreshTTL)
	}
	return svc, nil
}

// Guard exposes the account guard for administrative transitions.
func (s *Service) Guard() *Guard { return s.guard }

// Principal loads an identity record by id.
func (s *Service) Principal(ctx context.Context, id string) (*Principal, error) {
	return s.store.Find(ctx, id)
}

// Login authenticates credentials and issues a fresh token pair. The only
// state mutation on failure is the lockout counter increment; a correct
// password on an account that may not authenticate still fails with the
// account's standing error, never with ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, usernameOrEmail, password string) (TokenPair, *Principal, error) {
	login := strings.TrimSpace(usernameOrEmail)
	if login == "" || password == "" {
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	p, err := s.store.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Equalize timing with the real-hash path.
			_ = s.hasher.Verify(dummyPasswordHash, password)
			return TokenPair{}, nil, ErrInvalidCredentials
		}
		return TokenPair{}, nil, fmt.Errorf("find principal: %w", err)
	}
	if err := s.hasher.Verify(p.PasswordHash, password); err != nil {
		if updated, ferr := s.guard.RecordFailure(ctx, p); ferr == nil {
			p = updated
		}
		return TokenPair{}, nil, ErrInvalidCredentials
	}
	if err := s.guard.CanAuthenticate(p); err != nil {
		return TokenPair{}, nil, err
	}
	if err := s.guard.RecordSuccess(ctx, p); err != nil {
		return TokenPair{}, nil, err
	}
	pair, err := s.issuePair(p)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, p, nil
}

// Refresh exchanges a refresh token for a fresh pair. The account's standing
// is re-checked: a refresh must not resurrect a since-banned or since-locked
// account. The presented refresh token is revoked on success (rotation).
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (TokenPair, *Principal, error) {
	claims, err := s.codec.Decode(rawRefresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return TokenPair{}, nil, ErrTokenTypeMismatch
	}
	if s.revoker.IsRevoked(claims.Subject, claims.ID, claims.IssuedAt.Time) {
		return TokenPair{}, nil, ErrTokenInvalid
	}
	p, err := s.store.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, nil, ErrTokenInvalid
		}
		return TokenPair{}, nil, fmt.Errorf("find principal: %w", err)
	}
	if err := s.guard.CanAuthenticate(p); err != nil {
		return TokenPair{}, nil, err
	}
	s.revoker.RevokeToken(claims.Subject, claims.ID)
	pair, err := s.issuePair(p)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, p, nil
}

// Authenticate validates an access token and returns the request-scoped
// security context. Roles come from the freshly loaded principal, not from the
// token, so role changes take effect before the token expires.
func (s *Service) Authenticate(ctx context.Context, rawAccess string) (SecurityContext, error) {
	claims, err := s.codec.Decode(rawAccess)
	if err != nil {
		return SecurityContext{}, err
	}
	if claims.TokenType != TokenTypeAccess {
		return SecurityContext{}, ErrTokenTypeMismatch
	}
	p, err := s.store.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Stale token for a now-nonexistent or renamed account.
			return SecurityContext{}, ErrTokenInvalid
		}
		return SecurityContext{}, fmt.Errorf("find principal: %w", err)
	}
	if err := s.guard.CanAuthenticate(p); err != nil {
		return SecurityContext{}, err
	}
	if s.revoker.IsRevoked(claims.Subject, claims.ID, claims.IssuedAt.Time) {
		return SecurityContext{}, ErrTokenInvalid
	}
	return SecurityContext{
		UserID:   p.ID,
		Username: p.Username,
		Roles:    NormalizeRoles(p.Roles),
	}, nil
}

// TokenInfo is the result of a validation probe.
type TokenInfo struct {
	Valid     bool
	TokenType TokenType
	UserID    string
	ExpiresIn time.Duration
}

// ValidateToken inspects a token of either type without side effects. Invalid
// tokens yield Valid=false; the error return is reserved for store failures.
func (s *Service) ValidateToken(ctx context.Context, raw string) (TokenInfo, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return TokenInfo{}, nil
	}
	p, err := s.store.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenInfo{}, nil
		}
		return TokenInfo{}, fmt.Errorf("find principal: %w", err)
	}
	if s.guard.CanAuthenticate(p) != nil {
		return TokenInfo{}, nil
	}
	if s.revoker.IsRevoked(claims.Subject, claims.ID, claims.IssuedAt.Time) {
		return TokenInfo{}, nil
	}
	return TokenInfo{
		Valid:     true,
		TokenType: claims.TokenType,
		UserID:    claims.UserID,
		ExpiresIn: claims.ExpiresAt.Time.Sub(s.now()),
	}, nil
}

// Logout revokes the presented access token. Without a shared revocation
// store this is effective for the current instance only; the token remains
// cryptographically valid until natural expiry elsewhere.
func (s *Service) Logout(ctx context.Context, rawAccess string) error {
	claims, err := s.codec.Decode(rawAccess)
	if err != nil {
		return err
	}
	if claims.TokenType != TokenTypeAccess {
		return ErrTokenTypeMismatch
	}
	s.revoker.RevokeToken(claims.Subject, claims.ID)
	return nil
}

// LogoutAll revokes every token for the presented token's subject issued up to
// now, refresh tokens included.
func (s *Service) LogoutAll(ctx context.Context, rawAccess string) error {
	claims, err := s.codec.Decode(rawAccess)
	if err != nil {
		return err
	}
	if claims.TokenType != TokenTypeAccess {
		return ErrTokenTypeMismatch
	}
	s.revoker.RevokeAll(claims.Subject, s.now())
	return nil
}

// IssueAccessToken builds a signed access token embedding identity, email and
// roles.
func (s *Service) IssueAccessToken(p *Principal) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.accessTTL)
	claims := &Claims{
		UserID:    p.ID,
		Email:     p.Email,
		Roles:     NormalizeRoles(p.Roles),
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.codec.Issuer(),
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := s.codec.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// IssueRefreshToken builds a signed refresh token. It carries only the
// subject and user id, no email and no roles.
func (s *Service) IssueRefreshToken(p *Principal) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.refreshTTL)
	claims := &Claims{
		UserID:    p.ID,
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.codec.Issuer(),
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := s.codec.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

func (s *Service) issuePair(p *Principal) (TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
