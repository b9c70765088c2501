package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stewardhq/steward/internal/auth"
	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/metrics"
	"github.com/stewardhq/steward/internal/token"
)

// TokenStore is the persistence surface the token handlers need.
type TokenStore interface {
	Create(ctx context.Context, owner string, in token.CreateInput) (*token.Token, error)
	Get(ctx context.Context, owner, id string) (*token.Token, error)
	List(ctx context.Context, owner string, pageSize int, pageToken string) ([]*token.Token, int64, string, error)
	Delete(ctx context.Context, owner, id string) error
	Lookup(ctx context.Context, plaintext string) (*token.Token, error)
}

// tokensHandler serves the API token lifecycle for the authenticated caller.
type tokensHandler struct {
	store   TokenStore
	metrics *metrics.Metrics
}

func newTokensHandler(store TokenStore, m *metrics.Metrics) *tokensHandler {
	return &tokensHandler{store: store, metrics: m}
}

func (h *tokensHandler) countWrite(op, outcome string) {
	if h.metrics != nil {
		h.metrics.IncResourceWrite("tokens", op, outcome)
	}
}

// caller resolves the authenticated owner or writes a 401.
func (h *tokensHandler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeDomainError(w, fmt.Errorf("%w: no authenticated caller", errdomain.ErrUnauthenticated))
		return "", false
	}
	return id.UID.String(), true
}

// Create handles POST /tokens. The plaintext secret is returned exactly once.
func (h *tokensHandler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	var in token.CreateInput
	if err := readJSON(r, &in); err != nil {
		writeDomainError(w, fmt.Errorf("%w: malformed request body", errdomain.ErrInvalidArgument))
		return
	}
	if err := in.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	t, err := h.store.Create(r.Context(), owner, in)
	if err != nil {
		h.countWrite("create", "error")
		writeDomainError(w, err)
		return
	}

	h.countWrite("create", "ok")
	writeJSON(w, http.StatusCreated, map[string]interface{}{"token": t})
}

// List handles GET /tokens for the authenticated caller.
func (h *tokensHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	pageSize, ok := pageSizeParam(w, r)
	if !ok {
		return
	}

	tokens, total, nextToken, err := h.store.List(r.Context(), owner, pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tokens == nil {
		tokens = []*token.Token{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokens":          tokens,
		"next_page_token": nextToken,
		"total_size":      total,
	})
}

// Get handles GET /tokens/{id}.
func (h *tokensHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": t})
}

// Delete handles DELETE /tokens/{id}.
func (h *tokensHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		h.countWrite("delete", "error")
		writeDomainError(w, err)
		return
	}

	h.countWrite("delete", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// Validate handles POST /validate_token. The secret is presented as a bearer
// credential and is resolved to its owner; it is never echoed back.
func (h *tokensHandler) Validate(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get("Authorization")
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		writeDomainError(w, fmt.Errorf("%w: missing bearer token", errdomain.ErrUnauthenticated))
		return
	}

	t, err := h.store.Lookup(r.Context(), parts[1])
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncAuthFailure("api_token")
		}
		writeDomainError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncAuthSuccess("api_token")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner_uid":     t.Owner,
		"state":         t.EffectiveState(time.Now().UTC()),
		"expire_time":   t.ExpireTime,
		"token_prefix":  t.Prefix,
		"validate_time": time.Now().UTC(),
	})
}
