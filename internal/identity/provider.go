package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "openmediamap/pkg/domain-errors"
	"openmediamap/pkg/platform/sentinel"
	"openmediamap/pkg/requestcontext"
)

// Claims are the access token claims issued by the identity provider.
// Admin is decoded loosely so that only a JSON boolean true grants the
// capability; "true", 1 and similar values do not.
type Claims struct {
	Admin any `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the admin claim is exactly boolean true.
func (c *Claims) IsAdmin() bool {
	v, ok := c.Admin.(bool)
	return ok && v
}

// Authenticator verifies a bearer credential.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (Identity, error)
}

// Provider verifies HS256 access tokens and resolves the caller's username.
type Provider struct {
	signingKey []byte
	issuer     string
	audience   string
	leeway     time.Duration
	profiles   ProfileDirectory
	logger     *slog.Logger
	now        func() time.Time
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

func WithProfiles(p ProfileDirectory) ProviderOption {
	return func(pr *Provider) {
		pr.profiles = p
	}
}

func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(pr *Provider) {
		if l != nil {
			pr.logger = l
		}
	}
}

func WithLeeway(d time.Duration) ProviderOption {
	return func(pr *Provider) {
		pr.leeway = d
	}
}

func WithProviderClock(now func() time.Time) ProviderOption {
	return func(pr *Provider) {
		if now != nil {
			pr.now = now
		}
	}
}

func NewProvider(signingKey, issuer, audience string, opts ...ProviderOption) *Provider {
	p := &Provider{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Authenticate verifies the token and builds the caller's Identity. A failed
// profile lookup degrades to an identity without a username.
func (p *Provider) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	claims, err := p.verify(bearer)
	if err != nil {
		return Identity{}, err
	}

	username := ""
	if p.profiles != nil {
		profile, err := p.profiles.ByUID(ctx, claims.Subject)
		switch {
		case err == nil:
			username = profile.Username
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			p.logger.WarnContext(ctx, "profile lookup failed during authentication",
				"error", err,
				"subject", claims.Subject,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	return Trusted(claims.Subject, username, claims.IsAdmin()), nil
}

func (p *Provider) verify(bearer string) (*Claims, error) {
	token := strings.TrimSpace(bearer)
	if token == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing token")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(p.leeway),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(p.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return p.signingKey, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return claims, nil
}
