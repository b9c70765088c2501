package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/auth"
	"github.com/stewardhq/steward/internal/errdomain"
)

// minPasswordLength keeps trivially guessable passwords out.
const minPasswordLength = 8

// PasswordStore is the credential surface the auth handlers need.
type PasswordStore interface {
	CheckPassword(ctx context.Context, uid uuid.UUID, plaintext string) error
	UpdatePassword(ctx context.Context, uid uuid.UUID, plaintext string) error
}

// authHandler serves password management for the authenticated caller.
type authHandler struct {
	store PasswordStore
}

func newAuthHandler(store PasswordStore) *authHandler {
	return &authHandler{store: store}
}

// ChangePassword handles POST /auth/change_password. The old password must
// verify before the new one is stored.
func (h *authHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeDomainError(w, fmt.Errorf("%w: no authenticated caller", errdomain.ErrUnauthenticated))
		return
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeDomainError(w, fmt.Errorf("%w: malformed request body", errdomain.ErrInvalidArgument))
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeDomainError(w, fmt.Errorf("%w: new_password must be at least %d characters", errdomain.ErrInvalidArgument, minPasswordLength))
		return
	}

	if err := h.store.CheckPassword(r.Context(), id.UID, req.OldPassword); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.store.UpdatePassword(r.Context(), id.UID, req.NewPassword); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
