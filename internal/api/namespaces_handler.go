package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/auth"
	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/metrics"
	"github.com/stewardhq/steward/internal/namespace"
	"github.com/stewardhq/steward/internal/resource"
)

// NamespaceStore is the persistence surface the namespace handlers need.
type NamespaceStore interface {
	GetByID(ctx context.Context, typ namespace.Type, id string) (*namespace.Namespace, error)
	GetByUID(ctx context.Context, typ namespace.Type, uid uuid.UUID) (*namespace.Namespace, error)
	List(ctx context.Context, typ namespace.Type, pageSize int, pageToken string) ([]*namespace.Namespace, int64, string, error)
	Create(ctx context.Context, in namespace.CreateInput) (*namespace.Namespace, error)
	Update(ctx context.Context, typ namespace.Type, id string, mutate func(*namespace.Namespace) error) (*namespace.Namespace, error)
}

// namespacesHandler serves one namespace collection (users or organizations).
type namespacesHandler struct {
	store           NamespaceStore
	typ             namespace.Type
	allowTypeChange bool
	metrics         *metrics.Metrics
}

func newNamespacesHandler(store NamespaceStore, typ namespace.Type, allowTypeChange bool, m *metrics.Metrics) *namespacesHandler {
	return &namespacesHandler{store: store, typ: typ, allowTypeChange: allowTypeChange, metrics: m}
}

// singular is the envelope key for one record.
func (h *namespacesHandler) singular() string {
	if h.typ == namespace.TypeOrganization {
		return "organization"
	}
	return "user"
}

// plural is the envelope key for a list of records.
func (h *namespacesHandler) plural() string {
	return h.typ.Collection()
}

func (h *namespacesHandler) countWrite(op, outcome string) {
	if h.metrics != nil {
		h.metrics.IncResourceWrite(h.typ.Collection(), op, outcome)
	}
}

// List handles GET /{collection}.
func (h *namespacesHandler) List(w http.ResponseWriter, r *http.Request) {
	pageSize, ok := pageSizeParam(w, r)
	if !ok {
		return
	}

	records, total, nextToken, err := h.store.List(r.Context(), h.typ, pageSize, r.URL.Query().Get("page_token"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []*namespace.Namespace{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		h.plural():        records,
		"next_page_token": nextToken,
		"total_size":      total,
	})
}

// Get handles GET /{collection}/{id}. A uid in the id position is a
// disallowed cross-identifier lookup and reads as missing.
func (h *namespacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if resource.IsUID(id) {
		writeDomainError(w, fmt.Errorf("%w: %s", errdomain.ErrNotFound, resource.Name(h.typ.Collection(), id)))
		return
	}

	ns, err := h.store.GetByID(r.Context(), h.typ, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{h.singular(): ns})
}

// LookUp handles GET /{collection}/{uid}/lookUp, the permalink form. A slug
// in the uid position reads as missing.
func (h *namespacesHandler) LookUp(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	uid, err := uuid.Parse(raw)
	if err != nil {
		writeDomainError(w, fmt.Errorf("%w: %s", errdomain.ErrNotFound, resource.Name(h.typ.Collection(), raw)))
		return
	}

	ns, err := h.store.GetByUID(r.Context(), h.typ, uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{h.singular(): ns})
}

// Create handles POST /{collection}.
func (h *namespacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in namespace.CreateInput
	if err := readJSON(r, &in); err != nil {
		writeDomainError(w, fmt.Errorf("%w: malformed request body", errdomain.ErrInvalidArgument))
		return
	}
	in.Type = h.typ

	if err := in.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	ns, err := h.store.Create(r.Context(), in)
	if err != nil {
		h.countWrite("create", "error")
		writeDomainError(w, err)
		return
	}

	h.countWrite("create", "ok")
	writeJSON(w, http.StatusCreated, map[string]interface{}{h.singular(): ns})
}

// Update handles PATCH /{collection}/{id} with an optional explicit
// update_mask query parameter.
func (h *namespacesHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.updateByID(w, r, chi.URLParam(r, "id"))
}

func (h *namespacesHandler) updateByID(w http.ResponseWriter, r *http.Request, id string) {
	var patch namespace.Patch
	if err := readJSON(r, &patch); err != nil {
		writeDomainError(w, fmt.Errorf("%w: malformed request body", errdomain.ErrInvalidArgument))
		return
	}

	mask, err := namespace.UpdateMask(r.URL.Query().Get("update_mask"), patch, h.allowTypeChange)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ns, err := h.store.Update(r.Context(), h.typ, id, func(ns *namespace.Namespace) error {
		return namespace.Apply(ns, patch, mask)
	})
	if err != nil {
		h.countWrite("update", "error")
		writeDomainError(w, err)
		return
	}

	h.countWrite("update", "ok")
	writeJSON(w, http.StatusOK, map[string]interface{}{h.singular(): ns})
}

// Delete handles DELETE /{collection}/{id}. Deletion is intentionally
// unsupported for namespaces.
func (h *namespacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	writeDomainError(w, fmt.Errorf("%w: %s deletion is not supported", errdomain.ErrUnimplemented, h.singular()))
}

// CreateUnimplemented handles POST on collections where creation is
// intentionally disabled (public user creation).
func (h *namespacesHandler) CreateUnimplemented(w http.ResponseWriter, r *http.Request) {
	writeDomainError(w, fmt.Errorf("%w: public %s creation is not supported", errdomain.ErrUnimplemented, h.singular()))
}

// GetMe handles GET /user, resolving the authenticated caller.
func (h *namespacesHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeDomainError(w, fmt.Errorf("%w: no authenticated caller", errdomain.ErrUnauthenticated))
		return
	}

	ns, err := h.store.GetByUID(r.Context(), h.typ, id.UID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{h.singular(): ns})
}

// UpdateMe handles PATCH /user, resolving the authenticated caller.
func (h *namespacesHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeDomainError(w, fmt.Errorf("%w: no authenticated caller", errdomain.ErrUnauthenticated))
		return
	}

	ns, err := h.store.GetByUID(r.Context(), h.typ, id.UID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.updateByID(w, r, ns.ID)
}

// reservedIDs can never be claimed as a namespace id.
var reservedIDs = map[string]struct{}{
	"me":        {},
	"admin":     {},
	"steward":   {},
	"api":       {},
	"health":    {},
	"metrics":   {},
	"user":      {},
	"users":     {},
	"tokens":    {},
	"this":      {},
	"instances": {},
}

// checkNamespaceHandler reports whether an id is free to claim.
type checkNamespaceHandler struct {
	store NamespaceStore
}

// Check handles GET /check_namespace?id={id}. The response type field is one
// of NAMESPACE_AVAILABLE, NAMESPACE_RESERVED, NAMESPACE_USER or
// NAMESPACE_ORGANIZATION.
func (h *checkNamespaceHandler) Check(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := resource.ValidateID(id); err != nil {
		writeDomainError(w, err)
		return
	}

	result := "NAMESPACE_AVAILABLE"
	if _, reserved := reservedIDs[id]; reserved {
		result = "NAMESPACE_RESERVED"
	} else if _, err := h.store.GetByID(r.Context(), namespace.TypeUser, id); err == nil {
		result = "NAMESPACE_USER"
	} else if _, err := h.store.GetByID(r.Context(), namespace.TypeOrganization, id); err == nil {
		result = "NAMESPACE_ORGANIZATION"
	}

	writeJSON(w, http.StatusOK, map[string]string{"type": result})
}

// CheckAdmin handles GET /admin/check_namespace?id={id}. On top of the
// availability type it reports the uid and the record currently holding the
// id.
func (h *checkNamespaceHandler) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := resource.ValidateID(id); err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]interface{}{"type": "NAMESPACE_AVAILABLE"}
	if _, reserved := reservedIDs[id]; reserved {
		resp["type"] = "NAMESPACE_RESERVED"
	} else if ns, err := h.store.GetByID(r.Context(), namespace.TypeUser, id); err == nil {
		resp["type"] = "NAMESPACE_USER"
		resp["uid"] = ns.UID
		resp["user"] = ns
	} else if ns, err := h.store.GetByID(r.Context(), namespace.TypeOrganization, id); err == nil {
		resp["type"] = "NAMESPACE_ORGANIZATION"
		resp["uid"] = ns.UID
		resp["organization"] = ns
	}

	writeJSON(w, http.StatusOK, resp)
}

// CheckByUID handles GET /admin/check_namespace_by_uid?uid={uid}. An unknown
// uid reads as available.
func (h *checkNamespaceHandler) CheckByUID(w http.ResponseWriter, r *http.Request) {
	uid, err := uuid.Parse(r.URL.Query().Get("uid"))
	if err != nil {
		writeDomainError(w, fmt.Errorf("%w: uid must be a UUID", errdomain.ErrInvalidArgument))
		return
	}

	resp := map[string]interface{}{"type": "NAMESPACE_AVAILABLE"}
	if ns, err := h.store.GetByUID(r.Context(), namespace.TypeUser, uid); err == nil {
		resp["type"] = "NAMESPACE_USER"
		resp["id"] = ns.ID
		resp["user"] = ns
	} else if ns, err := h.store.GetByUID(r.Context(), namespace.TypeOrganization, uid); err == nil {
		resp["type"] = "NAMESPACE_ORGANIZATION"
		resp["id"] = ns.ID
		resp["organization"] = ns
	}

	writeJSON(w, http.StatusOK, resp)
}
