package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/imagerelay/imagerelay/internal/platform/env"
)

type Mode string

const (
	ModeOIDC     Mode = "oidc"
	ModeStatic   Mode = "static"
	ModeDisabled Mode = "disabled"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller of an API request.
type Identity struct {
	Subject string
	Email   string
}

type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

type Config struct {
	Mode Mode

	OIDCIssuerURL string
	OIDCClientID  string
	EmailClaim    string

	StaticToken   string
	StaticSubject string
}

func ConfigFromEnv() (Config, error) {
	modeRaw := strings.ToLower(strings.TrimSpace(env.String("AUTH_MODE", string(ModeStatic))))
	var mode Mode
	switch modeRaw {
	case string(ModeOIDC):
		mode = ModeOIDC
	case string(ModeStatic):
		mode = ModeStatic
	case string(ModeDisabled):
		mode = ModeDisabled
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be one of: oidc, static, disabled (got %q)", modeRaw)
	}

	cfg := Config{
		Mode:          mode,
		OIDCIssuerURL: env.String("OIDC_ISSUER_URL", ""),
		OIDCClientID:  env.String("OIDC_CLIENT_ID", ""),
		EmailClaim:    env.String("AUTH_EMAIL_CLAIM", "email"),
		StaticToken:   env.String("AUTH_STATIC_TOKEN", ""),
		StaticSubject: env.String("AUTH_STATIC_SUBJECT", "relay-client"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
	case ModeStatic:
		if strings.TrimSpace(c.StaticToken) == "" {
			return errors.New("AUTH_STATIC_TOKEN is required when AUTH_MODE=static")
		}
	case ModeDisabled:
	default:
		return fmt.Errorf("unsupported auth mode %q", c.Mode)
	}
	return nil
}

// New builds the authenticator for the configured mode.
func New(ctx context.Context, cfg Config) (Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case ModeOIDC:
		return NewOIDCAuthenticator(ctx, cfg)
	case ModeStatic:
		return &StaticTokenAuthenticator{Token: cfg.StaticToken, Subject: cfg.StaticSubject}, nil
	case ModeDisabled:
		return disabledAuthenticator{}, nil
	}
	return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
}

// StaticTokenAuthenticator accepts a single shared bearer token.
type StaticTokenAuthenticator struct {
	Token   string
	Subject string
}

func (a *StaticTokenAuthenticator) Authenticate(_ context.Context, r *http.Request) (Identity, error) {
	token := tokenFromHeader(r)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Subject: a.Subject}, nil
}

type disabledAuthenticator struct{}

func (disabledAuthenticator) Authenticate(context.Context, *http.Request) (Identity, error) {
	return Identity{Subject: "anonymous"}, nil
}

func tokenFromHeader(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type ctxKeyIdentity struct{}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return v, ok
}

func withIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, identity)
}
