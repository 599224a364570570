// Package sqlstore persists membership profiles in a SQL database.
// Postgres (lib/pq) is the production backend; SQLite (modernc) serves local runs and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/covercompare/membergate/internal/engine"
	"github.com/covercompare/membergate/pkg/schema"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the database/sql driver and its SQL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a configuration value onto a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported sql dialect %q", s)
}

var _ engine.ProfileStore = (*Store)(nil)

// Store is a ProfileStore backed by a `profiles` table.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database, verifies the connection and ensures the schema exists.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", dialect, err)
	}

	if dialect == SQLite {
		// SQLite works best with a single writer connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s db: %w", dialect, err)
	}

	s := New(db, dialect)
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// New wraps an already opened database. The schema is assumed to exist.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) initSchema(ctx context.Context) error {
	idType, tsType := "TEXT", "TIMESTAMP"
	if s.dialect == Postgres {
		idType, tsType = "UUID", "TIMESTAMPTZ"
	}

	schemaSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS profiles (
			id                 %[1]s PRIMARY KEY,
			username           TEXT NOT NULL,
			department         TEXT NOT NULL DEFAULT '',
			role               TEXT NOT NULL DEFAULT 'member',
			is_exempt          BOOLEAN NOT NULL DEFAULT FALSE,
			membership_status  TEXT NOT NULL DEFAULT 'pending',
			paid_until         %[2]s,
			grace_period_until %[2]s,
			suspended_at       %[2]s,
			deleted_at         %[2]s,
			last_payment_at    %[2]s,
			is_approved        BOOLEAN NOT NULL DEFAULT FALSE,
			payment_note       TEXT,
			created_at         %[2]s NOT NULL,
			updated_at         %[2]s NOT NULL
		)`, idType, tsType)

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS profiles_status_idx ON profiles (membership_status)`)
	return err
}

const profileColumns = `id, username, department, role, is_exempt, membership_status,
	paid_until, grace_period_until, suspended_at, deleted_at, last_payment_at,
	is_approved, payment_note, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id uuid.UUID) (schema.Profile, error) {
	query := s.rebind(`SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`)

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return schema.Profile{}, engine.ErrProfileNotFound
	}
	if err != nil {
		return schema.Profile{}, fmt.Errorf("db: profile fetch failed: %w", err)
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p schema.Profile) error {
	query := s.rebind(`
		INSERT INTO profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)

	res, err := s.db.ExecContext(ctx, query,
		p.AccountID.String(),
		p.Username,
		p.Department,
		string(p.Role),
		p.Exempt,
		string(p.Status),
		s.timeArg(p.PaidUntil),
		s.timeArg(p.GracePeriodUntil),
		s.timeArg(p.SuspendedAt),
		s.timeArg(p.DeletedAt),
		s.timeArg(p.LastPaymentAt),
		p.IsApproved,
		nullString(p.PaymentNote),
		s.timeArg(&p.CreatedAt),
		s.timeArg(&p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("db: profile insert failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: profile insert failed: %w", err)
	}
	if n == 0 {
		return engine.ErrProfileExists
	}
	return nil
}

// Update writes every mutable column in one statement so readers never observe a partial transition.
func (s *Store) Update(ctx context.Context, p schema.Profile) error {
	query := s.rebind(`
		UPDATE profiles SET
			username = ?,
			department = ?,
			role = ?,
			is_exempt = ?,
			membership_status = ?,
			paid_until = ?,
			grace_period_until = ?,
			suspended_at = ?,
			deleted_at = ?,
			last_payment_at = ?,
			is_approved = ?,
			payment_note = ?,
			updated_at = ?
		WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query,
		p.Username,
		p.Department,
		string(p.Role),
		p.Exempt,
		string(p.Status),
		s.timeArg(p.PaidUntil),
		s.timeArg(p.GracePeriodUntil),
		s.timeArg(p.SuspendedAt),
		s.timeArg(p.DeletedAt),
		s.timeArg(p.LastPaymentAt),
		p.IsApproved,
		nullString(p.PaymentNote),
		s.timeArg(&p.UpdatedAt),
		p.AccountID.String(),
	)
	if err != nil {
		return fmt.Errorf("db: profile update failed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: profile update failed: %w", err)
	}
	if n == 0 {
		return engine.ErrProfileNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, status schema.Status) ([]schema.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	var args []any
	if status != "" {
		query += ` WHERE membership_status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY username ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("db: profile list failed: %w", err)
	}
	defer rows.Close()

	profiles := []schema.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("db: profile scan failed: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: profile list failed: %w", err)
	}
	return profiles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (schema.Profile, error) {
	var (
		p         schema.Profile
		id        string
		role      string
		status    string
		note      sql.NullString
		paidUntil nullTime
		grace     nullTime
		suspended nullTime
		deleted   nullTime
		lastPaid  nullTime
		createdAt nullTime
		updatedAt nullTime
	)

	err := row.Scan(
		&id,
		&p.Username,
		&p.Department,
		&role,
		&p.Exempt,
		&status,
		&paidUntil,
		&grace,
		&suspended,
		&deleted,
		&lastPaid,
		&p.IsApproved,
		&note,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return schema.Profile{}, err
	}

	p.AccountID, err = uuid.Parse(id)
	if err != nil {
		return schema.Profile{}, fmt.Errorf("invalid account id %q: %w", id, err)
	}
	p.Role = schema.Role(role)
	p.Status = schema.Status(status)
	p.PaidUntil = paidUntil.ptr()
	p.GracePeriodUntil = grace.ptr()
	p.SuspendedAt = suspended.ptr()
	p.DeletedAt = deleted.ptr()
	p.LastPaymentAt = lastPaid.ptr()
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	if note.Valid {
		v := note.String
		p.PaymentNote = &v
	}
	return p, nil
}

// rebind rewrites ? placeholders into the $n form Postgres expects.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts a timestamp into a driver argument. SQLite stores RFC 3339 text.
func (s *Store) timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	if s.dialect == SQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
