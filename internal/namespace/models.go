package namespace

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/fieldmask"
	"github.com/stewardhq/steward/internal/resource"
)

// Type discriminates the two namespace variants sharing one identifier
// scheme.
type Type string

const (
	TypeUser         Type = "OWNER_TYPE_USER"
	TypeOrganization Type = "OWNER_TYPE_ORGANIZATION"
)

// Valid reports whether t is a known namespace type.
func (t Type) Valid() bool {
	return t == TypeUser || t == TypeOrganization
}

// Collection returns the resource-name collection for the type.
func (t Type) Collection() string {
	if t == TypeOrganization {
		return resource.CollectionOrganizations
	}
	return resource.CollectionUsers
}

// Role is the self-reported role of a namespace owner, validated against a
// fixed allow-list.
type Role string

const (
	RoleManager           Role = "Manager"
	RoleAIResearcher      Role = "AI Researcher"
	RoleAIEngineer        Role = "AI Engineer"
	RoleDataEngineer      Role = "Data Engineer"
	RoleDataScientist     Role = "Data Scientist"
	RoleAnalyticsEngineer Role = "Analytics Engineer"
	RoleHobbyist          Role = "Hobbyist"
)

// AllowedRoles lists every accepted role value. The empty string is also
// accepted and means "unset".
var AllowedRoles = []Role{
	RoleManager,
	RoleAIResearcher,
	RoleAIEngineer,
	RoleDataEngineer,
	RoleDataScientist,
	RoleAnalyticsEngineer,
	RoleHobbyist,
}

// ValidateRole checks r against the allow-list.
func ValidateRole(r Role) error {
	if r == "" {
		return nil
	}
	for _, allowed := range AllowedRoles {
		if r == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown role %q", errdomain.ErrInvalidArgument, r)
}

// Profile holds the caller-facing display fields.
type Profile struct {
	DisplayName string `json:"display_name"`
	CompanyName string `json:"company_name"`
}

// Namespace is a User or Organization record. `uid` is the immutable
// internal primary key; `id` is the caller-facing slug; `name` is the
// canonical resource path derived from both.
type Namespace struct {
	Name                   string    `json:"name"`
	UID                    uuid.UUID `json:"uid"`
	ID                     string    `json:"id"`
	Type                   Type      `json:"type"`
	Email                  string    `json:"email"`
	CustomerID             string    `json:"customer_id"`
	Profile                Profile   `json:"profile"`
	Role                   Role      `json:"role"`
	NewsletterSubscription bool      `json:"newsletter_subscription"`
	CookieToken            string    `json:"cookie_token,omitempty"`
	CreateTime             time.Time `json:"create_time"`
	UpdateTime             time.Time `json:"update_time"`
}

// CreateInput holds the caller-supplied fields for admin creation.
type CreateInput struct {
	ID                     string  `json:"id"`
	Type                   Type    `json:"type"`
	Email                  string  `json:"email"`
	Profile                Profile `json:"profile"`
	Role                   Role    `json:"role"`
	NewsletterSubscription bool    `json:"newsletter_subscription"`
	Password               string  `json:"password,omitempty"`
}

// Validate checks the shape of a creation request before anything is
// persisted.
func (in CreateInput) Validate() error {
	if err := resource.ValidateID(in.ID); err != nil {
		return err
	}
	if in.Email == "" {
		return fmt.Errorf("%w: email is required", errdomain.ErrInvalidArgument)
	}
	if in.Type != "" && !in.Type.Valid() {
		return fmt.Errorf("%w: unknown namespace type %q", errdomain.ErrInvalidArgument, in.Type)
	}
	return ValidateRole(in.Role)
}

// ProfilePatch carries optional profile fields of a partial update.
type ProfilePatch struct {
	DisplayName *string `json:"display_name"`
	CompanyName *string `json:"company_name"`
}

// Patch carries the decoded body of a PATCH request. Only fields named in
// the update mask are applied.
type Patch struct {
	ID                     *string       `json:"id"`
	Type                   *Type         `json:"type"`
	Email                  *string       `json:"email"`
	Profile                *ProfilePatch `json:"profile"`
	Role                   *Role         `json:"role"`
	NewsletterSubscription *bool         `json:"newsletter_subscription"`
	CookieToken            *string       `json:"cookie_token"`

	// Server-set fields that callers sometimes echo back wholesale (the
	// "restore to defaults" pattern). Decoded so implied masks can strip
	// them instead of failing on unknown keys.
	Name       *string `json:"name"`
	UID        *string `json:"uid"`
	CustomerID *string `json:"customer_id"`
	CreateTime *string `json:"create_time"`
	UpdateTime *string `json:"update_time"`
}

// Keys returns the JSON keys present in the patch body, used to imply an
// update mask when the caller supplies none.
func (p Patch) Keys() []string {
	var keys []string
	add := func(name string, present bool) {
		if present {
			keys = append(keys, name)
		}
	}
	add("id", p.ID != nil)
	add("type", p.Type != nil)
	add("email", p.Email != nil)
	add("profile", p.Profile != nil)
	add("role", p.Role != nil)
	add("newsletter_subscription", p.NewsletterSubscription != nil)
	add("cookie_token", p.CookieToken != nil)
	add("name", p.Name != nil)
	add("uid", p.UID != nil)
	add("customer_id", p.CustomerID != nil)
	add("create_time", p.CreateTime != nil)
	add("update_time", p.UpdateTime != nil)
	return keys
}

// Field classification for the update engine. `type` moves from immutable to
// patchable when the policy flag allows type changes.
var (
	immutableFields  = []string{"name", "uid", "id", "create_time"}
	outputOnlyFields = []string{"update_time", "customer_id"}
	patchableFields  = []string{
		"email", "role", "newsletter_subscription", "cookie_token",
		"profile", "profile.display_name", "profile.company_name",
	}
)

// KnownFields returns every field path the update engine understands.
func KnownFields() []string {
	known := make([]string, 0, len(immutableFields)+len(outputOnlyFields)+len(patchableFields)+1)
	known = append(known, immutableFields...)
	known = append(known, outputOnlyFields...)
	known = append(known, patchableFields...)
	known = append(known, "type")
	return known
}

// UpdateMask validates and normalizes the mask for a PATCH. An explicit mask
// has every path checked: unknown paths and immutable paths fail, while
// server-computed paths (update_time, customer_id) are stripped. An implied
// mask, derived from the body keys, silently drops everything the caller may
// not touch, so echoing a full record back is a valid no-op for the
// server-owned fields.
func UpdateMask(rawMask string, body Patch, allowTypeChange bool) (fieldmask.Mask, error) {
	immutable := immutableFields
	if !allowTypeChange {
		immutable = append(append([]string{}, immutableFields...), "type")
	}

	if rawMask != "" {
		mask, err := fieldmask.Parse(rawMask)
		if err != nil {
			return nil, err
		}
		if err := fieldmask.CheckKnown(mask, KnownFields()); err != nil {
			return nil, err
		}
		if err := fieldmask.CheckImmutable(mask, immutable); err != nil {
			return nil, err
		}
		return mask.Without(outputOnlyFields...), nil
	}

	mask := fieldmask.FromKeys(body.Keys())
	mask = mask.Without(immutable...)
	return mask.Without(outputOnlyFields...), nil
}

// Apply merges the masked fields of the patch into ns. Validation failures
// leave ns untouched from the caller's perspective because the store applies
// the mutation inside a transaction that rolls back on error.
func Apply(ns *Namespace, p Patch, mask fieldmask.Mask) error {
	if mask.Contains("role") && p.Role != nil {
		if err := ValidateRole(*p.Role); err != nil {
			return err
		}
		ns.Role = *p.Role
	}
	if mask.Contains("type") && p.Type != nil {
		if !p.Type.Valid() {
			return fmt.Errorf("%w: unknown namespace type %q", errdomain.ErrInvalidArgument, *p.Type)
		}
		ns.Type = *p.Type
	}
	if mask.Contains("email") && p.Email != nil {
		if *p.Email == "" {
			return fmt.Errorf("%w: email must not be empty", errdomain.ErrInvalidArgument)
		}
		ns.Email = *p.Email
	}
	if mask.Contains("newsletter_subscription") && p.NewsletterSubscription != nil {
		ns.NewsletterSubscription = *p.NewsletterSubscription
	}
	if mask.Contains("cookie_token") && p.CookieToken != nil {
		ns.CookieToken = *p.CookieToken
	}
	if p.Profile != nil && (mask.Contains("profile") || mask.Contains("profile.display_name") || mask.Contains("profile.company_name")) {
		wholeProfile := mask.Contains("profile")
		if (wholeProfile || mask.Contains("profile.display_name")) && p.Profile.DisplayName != nil {
			ns.Profile.DisplayName = *p.Profile.DisplayName
		}
		if (wholeProfile || mask.Contains("profile.company_name")) && p.Profile.CompanyName != nil {
			ns.Profile.CompanyName = *p.Profile.CompanyName
		}
	}
	return nil
}
