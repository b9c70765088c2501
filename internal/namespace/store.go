package namespace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/paginate"
	"github.com/stewardhq/steward/internal/resource"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

const namespaceColumns = `uid, id, namespace_type, email, customer_id,
	display_name, company_name, role, newsletter_subscription, cookie_token,
	create_time, update_time`

// Store provides database operations for namespaces (users and
// organizations share one table, discriminated by namespace_type).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a namespace store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// row is satisfied by pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...any) error
}

// scanNamespace scans one namespace row and derives the canonical name.
func scanNamespace(r row) (*Namespace, error) {
	ns := &Namespace{}
	err := r.Scan(
		&ns.UID, &ns.ID, &ns.Type, &ns.Email, &ns.CustomerID,
		&ns.Profile.DisplayName, &ns.Profile.CompanyName, &ns.Role,
		&ns.NewsletterSubscription, &ns.CookieToken,
		&ns.CreateTime, &ns.UpdateTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errdomain.ErrNotFound
		}
		return nil, err
	}
	ns.Name = resource.Name(ns.Type.Collection(), ns.ID)
	return ns, nil
}

// GetByID retrieves a namespace of the given type by its slug.
func (s *Store) GetByID(ctx context.Context, typ Type, id string) (*Namespace, error) {
	ns, err := scanNamespace(s.pool.QueryRow(ctx,
		`SELECT `+namespaceColumns+` FROM namespaces
		 WHERE namespace_type = $1 AND id = $2`, typ, id))
	if err != nil {
		return nil, fmt.Errorf("getting namespace by id: %w", err)
	}
	return ns, nil
}

// GetByUID retrieves a namespace of the given type by its permalink uid.
func (s *Store) GetByUID(ctx context.Context, typ Type, uid uuid.UUID) (*Namespace, error) {
	ns, err := scanNamespace(s.pool.QueryRow(ctx,
		`SELECT `+namespaceColumns+` FROM namespaces
		 WHERE namespace_type = $1 AND uid = $2`, typ, uid))
	if err != nil {
		return nil, fmt.Errorf("getting namespace by uid: %w", err)
	}
	return ns, nil
}

// List returns one page of namespaces of the given type ordered by
// (create_time DESC, uid DESC), plus the total count and the next page
// token. A pageSize of zero returns the full set. The count and the page are
// read inside one repeatable-read transaction so total_size reflects a
// consistent snapshot.
func (s *Store) List(ctx context.Context, typ Type, pageSize int, pageToken string) ([]*Namespace, int64, string, error) {
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
		`SELECT COUNT(*) FROM namespaces WHERE namespace_type = $1`, typ,
	).Scan(&totalSize); err != nil {
		return nil, 0, "", fmt.Errorf("counting namespaces: %w", err)
	}

	query := `SELECT ` + namespaceColumns + ` FROM namespaces WHERE namespace_type = $1`
	args := []any{typ}

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
		// Fetch one extra row to detect whether another page exists.
		query += fmt.Sprintf(` LIMIT %d`, limit+1)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, "", fmt.Errorf("listing namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []*Namespace
	for rows.Next() {
		ns, serr := scanNamespace(rows)
		if serr != nil {
			return nil, 0, "", fmt.Errorf("scanning namespace row: %w", serr)
		}
		namespaces = append(namespaces, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, "", fmt.Errorf("iterating namespace rows: %w", err)
	}

	namespaces, nextPageToken := paginate.TrimPage(namespaces, limit, func(ns *Namespace) string {
		return paginate.EncodeToken(ns.CreateTime, ns.UID.String())
	})

	return namespaces, totalSize, nextPageToken, nil
}

// Create inserts a new namespace with a server-generated uid and timestamps.
// Duplicate slugs or emails surface as ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Namespace, error) {
	typ := in.Type
	if typ == "" {
		typ = TypeUser
	}

	var passwordHash string
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		passwordHash = string(hash)
	}

	now := time.Now().UTC()
	uid := uuid.New()

	ns, err := scanNamespace(s.pool.QueryRow(ctx,
		`INSERT INTO namespaces
		 (uid, id, namespace_type, email, customer_id, display_name,
		  company_name, role, newsletter_subscription, cookie_token,
		  password_hash, create_time, update_time)
		 VALUES ($1, $2, $3, $4, '', $5, $6, $7, $8, '', $9, $10, $10)
		 RETURNING `+namespaceColumns,
		uid, in.ID, typ, in.Email, in.Profile.DisplayName,
		in.Profile.CompanyName, in.Role, in.NewsletterSubscription,
		passwordHash, now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: namespace id or email already taken", errdomain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("creating namespace: %w", err)
	}
	return ns, nil
}

// Update runs a read-merge-write cycle for the namespace with the given
// slug. The row is locked with SELECT ... FOR UPDATE so concurrent PATCHes on
// the same record serialize; mutate is applied to the loaded record and any
// error aborts the transaction with no partial write. update_time is always
// server-computed after the merge.
func (s *Store) Update(ctx context.Context, typ Type, id string, mutate func(*Namespace) error) (*Namespace, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ns, err := scanNamespace(tx.QueryRow(ctx,
		`SELECT `+namespaceColumns+` FROM namespaces
		 WHERE namespace_type = $1 AND id = $2 FOR UPDATE`, typ, id))
	if err != nil {
		return nil, fmt.Errorf("loading namespace for update: %w", err)
	}

	if err := mutate(ns); err != nil {
		return nil, err
	}

	ns.UpdateTime = time.Now().UTC()

	updated, err := scanNamespace(tx.QueryRow(ctx,
		`UPDATE namespaces SET
		   namespace_type = $3, email = $4, display_name = $5,
		   company_name = $6, role = $7, newsletter_subscription = $8,
		   cookie_token = $9, update_time = $10
		 WHERE namespace_type = $1 AND id = $2
		 RETURNING `+namespaceColumns,
		typ, id, ns.Type, ns.Email, ns.Profile.DisplayName,
		ns.Profile.CompanyName, ns.Role, ns.NewsletterSubscription,
		ns.CookieToken, ns.UpdateTime,
	))
	if err != nil {
		return nil, fmt.Errorf("updating namespace: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing namespace update: %w", err)
	}
	return updated, nil
}

// GetPasswordHash returns the stored bcrypt hash for a namespace. An empty
// hash means no password has been set.
func (s *Store) GetPasswordHash(ctx context.Context, uid uuid.UUID) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM namespaces WHERE uid = $1`, uid,
	).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errdomain.ErrNotFound
		}
		return "", fmt.Errorf("getting password hash: %w", err)
	}
	return hash, nil
}

// UpdatePassword stores a new bcrypt hash for a namespace.
func (s *Store) UpdatePassword(ctx context.Context, uid uuid.UUID, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE namespaces SET password_hash = $2, password_update_time = $3
		 WHERE uid = $1`, uid, string(hash), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errdomain.ErrNotFound
	}
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
func (s *Store) CheckPassword(ctx context.Context, uid uuid.UUID, plaintext string) error {
	hash, err := s.GetPasswordHash(ctx, uid)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) != nil {
		return errdomain.ErrUnauthenticated
	}
	return nil
}
