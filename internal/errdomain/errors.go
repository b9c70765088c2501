// Package errdomain defines the domain errors shared by every layer of the
// service. Each sentinel maps to exactly one gRPC code, and the HTTP layer
// derives its status codes from that mapping, so REST and gRPC callers always
// observe the same error class for the same failure.
package errdomain

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidArgument covers malformed identifiers, bad field masks,
	// unknown enum values and undecodable page tokens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when no record matches the given id or uid.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned on id collisions (duplicate namespace or
	// token id).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthenticated is returned when no caller identity can be resolved
	// for a "me"-scoped operation, or when a presented credential is invalid.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnimplemented marks operations that are intentionally disabled:
	// user deletion and public user creation. This is a stable contract, not
	// a missing feature.
	ErrUnimplemented = errors.New("not implemented")
)

// Code returns the canonical gRPC code for err. Unknown errors are Internal.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, ErrUnimplemented):
		return codes.Unimplemented
	default:
		return codes.Internal
	}
}

// HTTPStatus transcodes err's gRPC code to its HTTP status.
func HTTPStatus(err error) int {
	switch Code(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// GRPCStatus converts err into a *status.Status carrying the canonical code,
// for use by the gRPC interceptors.
func GRPCStatus(err error) *status.Status {
	return status.New(Code(err), err.Error())
}
