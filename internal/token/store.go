package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/paginate"
	"github.com/stewardhq/steward/internal/resource"
)

const uniqueViolation = "23505"

const tokenColumns = `uid, id, owner, access_token_prefix, state, token_type,
	ttl, expire_time, create_time, update_time`

// Store provides database operations for API tokens. Tokens are scoped to
// an owner namespace, identified by its uid.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a token store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type row interface {
	Scan(dest ...any) error
}

func scanToken(r row) (*Token, error) {
	t := &Token{}
	err := r.Scan(
		&t.UID, &t.ID, &t.Owner, &t.Prefix, &t.State, &t.TokenType,
		&t.TTL, &t.ExpireTime, &t.CreateTime, &t.UpdateTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errdomain.ErrNotFound
		}
		return nil, err
	}
	t.Name = resource.Name(resource.CollectionTokens, t.ID)
	t.State = t.EffectiveState(time.Now().UTC())
	return t, nil
}

// Create inserts a new active token and returns it with the plaintext
// secret populated. A colliding id for the same owner loses deterministically
// with ErrAlreadyExists (unique index decides the winner under races).
func (s *Store) Create(ctx context.Context, owner string, in CreateInput) (*Token, error) {
	plaintext, hash, prefix, err := GenerateSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t, err := scanToken(s.pool.QueryRow(ctx,
		`INSERT INTO tokens
		 (uid, id, owner, access_token_hash, access_token_prefix, state,
		  token_type, ttl, expire_time, create_time, update_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 RETURNING `+tokenColumns,
		uuid.New(), in.ID, owner, hash, prefix, StateActive,
		TokenTypeBearer, *in.TTL, ExpireTimeFor(*in.TTL, now), now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: token id already exists", errdomain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("creating token: %w", err)
	}

	t.AccessToken = plaintext
	return t, nil
}

// Get retrieves a token by id within an owner's namespace.
func (s *Store) Get(ctx context.Context, owner, id string) (*Token, error) {
	t, err := scanToken(s.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE owner = $1 AND id = $2`,
		owner, id))
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return t, nil
}

// List returns one page of an owner's tokens ordered by
// (create_time DESC, uid DESC), with the total count from the same snapshot.
func (s *Store) List(ctx context.Context, owner string, pageSize int, pageToken string) ([]*Token, int64, string, error) {
	limit, err := paginate.Clamp(pageSize)
	if err != nil {
		return nil, 0, "", err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, 0, "", fmt.Errorf("beginning list transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var totalSize int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM tokens WHERE owner = $1`, owner,
	).Scan(&totalSize); err != nil {
		return nil, 0, "", fmt.Errorf("counting tokens: %w", err)
	}

	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE owner = $1`
	args := []any{owner}

	if pageToken != "" {
		cursorTime, cursorUID, derr := paginate.DecodeToken(pageToken)
		if derr != nil {
			return nil, 0, "", derr
		}
		query += ` AND (create_time, uid) < ($2, $3)`
		args = append(args, cursorTime, cursorUID)
	}

	query += ` ORDER BY create_time DESC, uid DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit+1)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, "", fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		t, serr := scanToken(rows)
		if serr != nil {
			return nil, 0, "", fmt.Errorf("scanning token row: %w", serr)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, "", fmt.Errorf("iterating token rows: %w", err)
	}

	tokens, nextPageToken := paginate.TrimPage(tokens, limit, func(t *Token) string {
		return paginate.EncodeToken(t.CreateTime, t.UID.String())
	})

	return tokens, totalSize, nextPageToken, nil
}

// Delete removes a token by id within an owner's namespace. A missing token
// is ErrNotFound, not a silent no-op.
func (s *Store) Delete(ctx context.Context, owner, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tokens WHERE owner = $1 AND id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errdomain.ErrNotFound
	}
	return nil
}

// Lookup resolves a presented plaintext secret to its token record and
// stamps last_use_time. Unknown, inactive and expired secrets all fail with
// ErrUnauthenticated so callers cannot probe token existence.
func (s *Store) Lookup(ctx context.Context, plaintext string) (*Token, error) {
	t, err := scanToken(s.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE access_token_hash = $1`,
		HashSecret(plaintext)))
	if err != nil {
		if errors.Is(err, errdomain.ErrNotFound) {
			return nil, errdomain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("looking up token: %w", err)
	}

	if t.State != StateActive {
		return nil, errdomain.ErrUnauthenticated
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE tokens SET last_use_time = $2 WHERE uid = $1`,
		t.UID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("stamping token use: %w", err)
	}
	return t, nil
}
