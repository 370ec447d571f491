package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
)

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	// Allows decides whether any of roles grants perm.
	Allows func(roles []string, perm string) bool
}

type Principal struct {
	ActorID     string
	Roles       []string
	Permissions []string
	Source      string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func authenticateJWT(token string, cfg AuthConfig) (Principal, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	claims := &jwtClaims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{
		ActorID:     claims.Subject,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		Source:      "jwt",
	}, nil
}

// SignToken mints an HS256 token for subject. It backs the dev-only token
// command; production tokens come from the identity provider.
func SignToken(cfg AuthConfig, subject string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("subject required")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware attaches a Principal when a bearer token is presented.
// Anonymous requests pass through; handlers that mutate state call
// requirePermission.
func newAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			principal, err := authenticateJWT(token, cfg)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// requirePermission returns the acting principal id, or a 401/403 error.
func requirePermission(ctx context.Context, cfg AuthConfig, perm string) (string, huma.StatusError) {
	p, ok := principalFromContext(ctx)
	if !ok || p.ActorID == "" {
		return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	if hasPermission(p.Permissions, perm) {
		return p.ActorID, nil
	}
	if cfg.Allows != nil && cfg.Allows(p.Roles, perm) {
		return p.ActorID, nil
	}
	return "", newAPIError(http.StatusForbidden, "forbidden", "missing permission "+perm, map[string]any{"permission": perm})
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
