// Package resource implements the AIP resource naming scheme shared by all
// collections: a canonical name of the form "{collection}/{id}", a mutable
// slug id and an immutable server-generated uid. It is the single place that
// knows how to tell the two identifier kinds apart.
package resource

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/stewardhq/steward/internal/errdomain"
)

// Collections with canonical resource names.
const (
	CollectionUsers         = "users"
	CollectionOrganizations = "organizations"
	CollectionTokens        = "tokens"
)

// Me is the alias resolving to the caller bound to the request's auth
// context. Only valid on the public surface.
const Me = "me"

// idPattern follows RFC-1034: letters, digits and hyphens, starting with a
// letter, ending with a letter or digit, at most 63 characters.
var idPattern = regexp.MustCompile(`^[a-z][-a-z0-9]{0,61}[a-z0-9]$|^[a-z]$`)

// Name builds the canonical resource name for an id within a collection.
func Name(collection, id string) string {
	return collection + "/" + id
}

// ExtractID returns the final path segment of a resource name. An empty
// segment is an invalid name.
func ExtractID(name string) (string, error) {
	id := name[strings.LastIndex(name, "/")+1:]
	if id == "" {
		return "", fmt.Errorf("%w: resource name %q has no id segment", errdomain.ErrInvalidArgument, name)
	}
	return id, nil
}

// ParseName splits a canonical name into collection and id, validating that
// the name has exactly two segments.
func ParseName(name string) (collection, id string, err error) {
	parts := strings.Split(name, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed resource name %q", errdomain.ErrInvalidArgument, name)
	}
	return parts[0], parts[1], nil
}

// IsUID reports whether s is a syntactically valid UUID. Used to route
// lookups and to reject UUID-shaped slugs.
func IsUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ValidateID checks that id is a usable slug: RFC-1034 shaped, free of
// whitespace, and not a UUID. A UUID-shaped id would make it impossible to
// distinguish id lookups from uid lookups, so it is rejected outright.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", errdomain.ErrInvalidArgument)
	}
	if strings.ContainsAny(id, " \t\n") {
		return fmt.Errorf("%w: id %q must not contain whitespace", errdomain.ErrInvalidArgument, id)
	}
	if IsUID(id) {
		return fmt.Errorf("%w: id %q must not be a UUID", errdomain.ErrInvalidArgument, id)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: id %q must match RFC-1034 (lowercase letters, digits and hyphens, starting with a letter, at most 63 characters)", errdomain.ErrInvalidArgument, id)
	}
	return nil
}
