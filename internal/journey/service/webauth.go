package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/cryptox"
	"github.com/tabservice/journeyd/pkg/idx"
	"github.com/tabservice/journeyd/pkg/jwtx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// WebAuthService is the cookie-session login variant for human users.
// Same signing machinery as the MCP tokens, much shorter lifetimes, and
// single-use refresh tokens rotated on every use.
type WebAuthService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Issuer     string

	AccessTTL  time.Duration // defaults to 10 minutes
	RefreshTTL time.Duration // defaults to 24 hours
}

func (s *WebAuthService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultWebAccessTTL
}

func (s *WebAuthService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultWebRefreshTTL
}

// Login checks the credentials and issues a web token pair.
func (s *WebAuthService) Login(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so missing users and wrong passwords
			// are indistinguishable.
			_ = cryptox.VerifySecret(password, dummySecretHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if cryptox.VerifySecret(password, user.PasswordHash) != nil {
		l.Info("web login failed", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	return s.issuePair(ctx, user)
}

// RefreshWebToken rotates a single-use web refresh token: the presented
// token is revoked and a fresh pair issued atomically.
func (s *WebAuthService) RefreshWebToken(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := time.Now()

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if rt.Kind != domain.RefreshKindWeb || !rt.Usable(now) {
		return nil, ErrInvalidRefresh
	}

	user, err := s.Store.Users().GetUserByID(ctx, rt.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	accessToken, err := s.signAccess(user, now)
	if err != nil {
		return nil, err
	}

	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	newRT := domain.RefreshToken{
		ID:        idx.New().String(),
		Kind:      domain.RefreshKindWeb,
		SubjectID: user.ID,
		TokenHash: cryptox.FingerprintToken(newOpaque),
		ExpiresAt: now.Add(s.refreshTTL()),
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRT)
	}); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
	}, nil
}

// ValidateWebToken verifies a web access token and returns its claims.
// MCP access tokens share the issuer and keys but carry no username
// claim, so they are rejected here.
func (s *WebAuthService) ValidateWebToken(ctx context.Context, token string) (jwtx.Claims, error) {
	verifier := jwtx.NewCommonRS256(s.KeyManager.KeySet, s.Issuer, nil)
	claims, err := verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, ErrInvalidCredentials
	}
	if claims.Username == "" {
		return jwtx.Claims{}, ErrInvalidCredentials
	}
	return claims, nil
}

// CreateUser provisions a human account, hashing the password at rest.
func (s *WebAuthService) CreateUser(ctx context.Context, username, password string) (domain.User, error) {
	hash, err := cryptox.HashSecret(password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *WebAuthService) issuePair(ctx context.Context, user domain.User) (*domain.TokenPair, error) {
	now := time.Now()

	accessToken, err := s.signAccess(user, now)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		Kind:      domain.RefreshKindWeb,
		SubjectID: user.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		ExpiresAt: now.Add(s.refreshTTL()),
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
	}, nil
}

func (s *WebAuthService) signAccess(user domain.User, now time.Time) (string, error) {
	signer := s.KeyManager.ActiveSigner()
	if signer == nil {
		return "", jwtx.ErrNoKey
	}
	claims := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL())),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jwtx.NewJTI(),
		},
		Username: user.Username,
		Version:  ClaimsVersion,
	}
	return signer.Sign(claims)
}

// dummySecretHash is a valid argon2id hash of an unguessable value, used
// to equalize login timing when the user does not exist.
const dummySecretHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
