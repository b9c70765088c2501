// Package paginate implements the opaque cursor tokens used by every list
// endpoint. A token encodes the (create_time, uid) position of the last
// record on a page; listing resumes strictly after that position on the
// stable (create_time DESC, uid DESC) ordering.
package paginate

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/stewardhq/steward/internal/errdomain"
)

// Page size bounds applied by every list endpoint. A requested size of zero
// means "return everything".
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// EncodeToken produces an opaque cursor from the ordering key of the last
// record on a page.
func EncodeToken(createTime time.Time, uid string) string {
	raw := createTime.UTC().Format(time.RFC3339Nano) + "|" + uid
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeToken parses a cursor back into its ordering key. Tokens not issued
// by EncodeToken are rejected with ErrInvalidArgument; they are never treated
// as "start from the beginning".
func DecodeToken(token string) (time.Time, string, error) {
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: malformed page token", errdomain.ErrInvalidArgument)
	}

	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("%w: malformed page token", errdomain.ErrInvalidArgument)
	}

	createTime, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: malformed page token", errdomain.ErrInvalidArgument)
	}

	return createTime, parts[1], nil
}

// TrimPage resolves a limit+1 probe fetch into the page to return and its
// next page token. cursor renders the ordering key of the last record kept.
// A limit of zero means the fetch was unbounded and everything fits on one
// page, so the token is empty.
func TrimPage[T any](records []T, limit int, cursor func(T) string) ([]T, string) {
	if limit <= 0 || len(records) <= limit {
		return records, ""
	}
	return records[:limit], cursor(records[limit-1])
}

// Clamp normalizes a requested page size: negative sizes are invalid, zero
// means unbounded (returned as 0), and sizes above MaxPageSize are capped.
func Clamp(pageSize int) (int, error) {
	switch {
	case pageSize < 0:
		return 0, fmt.Errorf("%w: page_size must not be negative", errdomain.ErrInvalidArgument)
	case pageSize == 0:
		return 0, nil
	case pageSize > MaxPageSize:
		return MaxPageSize, nil
	default:
		return pageSize, nil
	}
}
