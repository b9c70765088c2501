package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/resource"
)

// State of an API token. Expiry is derived from expire_time at read, not
// stored.
type State string

const (
	StateActive   State = "STATE_ACTIVE"
	StateInactive State = "STATE_INACTIVE"
	StateExpired  State = "STATE_EXPIRED"
)

// TokenTypeBearer is the only issued token type.
const TokenTypeBearer = "Bearer"

// NonExpiringTTL is the sentinel TTL for tokens that never expire.
const NonExpiringTTL int64 = -1

// nonExpiringTime is far enough in the future to stand in for "never".
var nonExpiringTime = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// secretPrefix identifies steward-issued secrets in Authorization headers.
const secretPrefix = "stw_"

// Token is an API access token. The plaintext secret is populated exactly
// once, on creation; only its SHA-256 hash and a short display prefix are
// stored.
type Token struct {
	Name        string    `json:"name"`
	UID         uuid.UUID `json:"uid"`
	ID          string    `json:"id"`
	Owner       string    `json:"-"`
	AccessToken string    `json:"access_token,omitempty"`
	Prefix      string    `json:"access_token_prefix"`
	State       State     `json:"state"`
	TokenType   string    `json:"token_type"`
	TTL         int64     `json:"ttl"`
	ExpireTime  time.Time `json:"expire_time"`
	CreateTime  time.Time `json:"create_time"`
	UpdateTime  time.Time `json:"update_time"`
}

// EffectiveState derives the caller-visible state at the given instant.
func (t *Token) EffectiveState(now time.Time) State {
	if t.State == StateActive && t.ExpireTime.Before(now) {
		return StateExpired
	}
	return t.State
}

// CreateInput holds the caller-supplied fields of a token creation request.
type CreateInput struct {
	ID  string `json:"id"`
	TTL *int64 `json:"ttl"`
}

// Validate checks the creation request. The TTL is required; -1 means
// non-expiring.
func (in CreateInput) Validate() error {
	if err := resource.ValidateID(in.ID); err != nil {
		return err
	}
	if in.TTL == nil {
		return fmt.Errorf("%w: ttl is required", errdomain.ErrInvalidArgument)
	}
	if *in.TTL < NonExpiringTTL {
		return fmt.Errorf("%w: ttl must be >= -1", errdomain.ErrInvalidArgument)
	}
	return nil
}

// ExpireTimeFor computes the expiry for a TTL relative to now.
func ExpireTimeFor(ttl int64, now time.Time) time.Time {
	if ttl == NonExpiringTTL {
		return nonExpiringTime
	}
	return now.Add(time.Duration(ttl) * time.Second)
}

// GenerateSecret creates a new token secret: "stw_" followed by 32 url-safe
// random characters. It returns the plaintext, its hash and its display
// prefix.
func GenerateSecret() (plaintext, hash, prefix string, err error) {
	b := make([]byte, 24) // 24 bytes -> 32 base64url chars
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}
	plaintext = secretPrefix + base64.RawURLEncoding.EncodeToString(b)
	return plaintext, HashSecret(plaintext), plaintext[:12], nil
}

// HashSecret returns the hex-encoded SHA-256 hash of a plaintext secret.
func HashSecret(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
