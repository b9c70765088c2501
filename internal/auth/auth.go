package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/token"
)

// UserUIDHeader carries the caller uid when requests arrive through the API
// gateway, which has already authenticated them.
const UserUIDHeader = "X-Steward-User-Uid"

// AdminKeyHeader carries the static key protecting the private surface.
const AdminKeyHeader = "X-Steward-Admin-Key"

// Identity is the authenticated caller of a public endpoint.
type Identity struct {
	UID uuid.UUID
}

// TokenLookup resolves an API token secret to the token record it belongs to.
type TokenLookup interface {
	Lookup(ctx context.Context, plaintext string) (*token.Token, error)
}

// Resolver maps an incoming request to a caller identity. Three credential
// forms are accepted: the gateway uid header, a bearer JWT whose sub claim is
// the caller uid, and a bearer API token.
type Resolver struct {
	jwtSecret []byte
	tokens    TokenLookup
}

// NewResolver creates a Resolver. The secret signs and verifies session JWTs.
func NewResolver(jwtSecret string, tokens TokenLookup) *Resolver {
	return &Resolver{jwtSecret: []byte(jwtSecret), tokens: tokens}
}

// Resolve extracts the caller identity from a request. It returns
// ErrUnauthenticated when no credential is present or the credential does not
// resolve to a namespace.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Identity, error) {
	if raw := req.Header.Get(UserUIDHeader); raw != "" {
		uid, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed %s header", errdomain.ErrUnauthenticated, UserUIDHeader)
		}
		return &Identity{UID: uid}, nil
	}

	bearer := extractBearerToken(req)
	if bearer == "" {
		return nil, fmt.Errorf("%w: missing credentials", errdomain.ErrUnauthenticated)
	}

	if strings.HasPrefix(bearer, "stw_") {
		return r.resolveAPIToken(ctx, bearer)
	}
	return r.resolveJWT(bearer)
}

func (r *Resolver) resolveAPIToken(ctx context.Context, plaintext string) (*Identity, error) {
	t, err := r.tokens.Lookup(ctx, plaintext)
	if err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(t.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing token owner uid: %w", err)
	}
	return &Identity{UID: uid}, nil
}

func (r *Resolver) resolveJWT(raw string) (*Identity, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid session token", errdomain.ErrUnauthenticated)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: session token missing subject", errdomain.ErrUnauthenticated)
	}
	uid, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: session token subject is not a uid", errdomain.ErrUnauthenticated)
	}
	return &Identity{UID: uid}, nil
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
