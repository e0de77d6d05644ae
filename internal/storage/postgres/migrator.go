package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Схема storefront поставляется вместе с бинарником.
//
//go:embed sql/migrations/*.sql
var embeddedMigrations embed.FS

const (
	migrationsDir = "sql/migrations"

	// storefrontMigrationLock — ключ pg_advisory_lock, сериализующий миграции между инстансами.
	storefrontMigrationLock = int64(0x53544f52)

	schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    checksum TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT NOT NULL DEFAULT ''`
)

var migrationFileName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// ErrMigrationModified означает, что уже применённый файл миграции изменился.
var ErrMigrationModified = errors.New("applied migration was modified")

// SchemaStatus — состояние схемы относительно встроенных миграций.
// Миграции перечисляются в виде "0001_catalog".
type SchemaStatus struct {
	Version  int64
	Applied  []string
	Pending  []string
	Modified []string
}

// UpToDate сообщает, что все миграции применены и не менялись после применения.
func (s SchemaStatus) UpToDate() bool {
	return len(s.Pending) == 0 && len(s.Modified) == 0
}

func (s SchemaStatus) String() string {
	pending := "none"
	if len(s.Pending) > 0 {
		pending = strings.Join(s.Pending, ",")
	}
	out := fmt.Sprintf("version=%d applied=%d pending=%s", s.Version, len(s.Applied), pending)
	if len(s.Modified) > 0 {
		out += " modified=" + strings.Join(s.Modified, ",")
	}
	return out
}

type migration struct {
	version  int64
	name     string
	up       string
	down     string
	checksum string
}

func (m migration) id() string {
	return fmt.Sprintf("%04d_%s", m.version, m.name)
}

// appliedMigration — строка schema_migrations.
type appliedMigration struct {
	version  int64
	checksum string
}

// migrationSet — миграции, отсортированные по версии.
type migrationSet []migration

// parseMigrations читает пары NNNN_name.up.sql / NNNN_name.down.sql из dir.
func parseMigrations(fsys fs.FS, dir string) (migrationSet, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := migrationFileName.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("invalid migration version in %s", entry.Name())
		}

		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{version: version, name: parts[2]}
			byVersion[version] = m
		}
		if m.name != parts[2] {
			return nil, fmt.Errorf("migration %d has two names: %s and %s", version, m.name, parts[2])
		}

		target := &m.up
		if parts[3] == "down" {
			target = &m.down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}

	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	set := make(migrationSet, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" || m.down == "" {
			return nil, fmt.Errorf("migration %s needs both up and down files", m.id())
		}
		sum := sha256.Sum256([]byte(m.up))
		m.checksum = hex.EncodeToString(sum[:])
		set = append(set, *m)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].version < set[j].version })
	return set, nil
}

// status сравнивает встроенные миграции с применёнными.
func (set migrationSet) status(applied map[int64]appliedMigration) SchemaStatus {
	var st SchemaStatus
	for _, m := range set {
		row, ok := applied[m.version]
		if !ok {
			st.Pending = append(st.Pending, m.id())
			continue
		}
		st.Applied = append(st.Applied, m.id())
		// Пустая сумма — запись сделана до появления колонки checksum.
		if row.checksum != "" && row.checksum != m.checksum {
			st.Modified = append(st.Modified, m.id())
		}
	}
	for version := range applied {
		st.Version = max(st.Version, version)
	}
	return st
}

// upPlan возвращает до steps неприменённых миграций (steps<=0 — все).
// Изменённые после применения миграции блокируют накат.
func (set migrationSet) upPlan(applied map[int64]appliedMigration, steps int) (migrationSet, error) {
	st := set.status(applied)
	if len(st.Modified) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMigrationModified, strings.Join(st.Modified, ", "))
	}

	var plan migrationSet
	for _, m := range set {
		if _, ok := applied[m.version]; ok {
			continue
		}
		plan = append(plan, m)
		if steps > 0 && len(plan) == steps {
			break
		}
	}
	return plan, nil
}

// downPlan возвращает steps последних применённых миграций, начиная с новейшей.
func (set migrationSet) downPlan(applied map[int64]appliedMigration, steps int) (migrationSet, error) {
	versions := make([]int64, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	if steps < len(versions) {
		versions = versions[:steps]
	}

	known := make(map[int64]migration, len(set))
	for _, m := range set {
		known[m.version] = m
	}

	plan := make(migrationSet, 0, len(versions))
	for _, version := range versions {
		m, ok := known[version]
		if !ok {
			return nil, fmt.Errorf("cannot roll back unknown migration version %d", version)
		}
		plan = append(plan, m)
	}
	return plan, nil
}

// MigrateUp применяет up-миграции; steps=0 применяет все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn, set migrationSet, applied map[int64]appliedMigration) error {
		plan, err := set.upPlan(applied, steps)
		if err != nil {
			return err
		}
		for _, m := range plan {
			if err := applyStep(ctx, conn, m, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrateDown откатывает steps последних миграций; steps<=0 означает один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationLock(ctx, func(conn *sql.Conn, set migrationSet, applied map[int64]appliedMigration) error {
		plan, err := set.downPlan(applied, steps)
		if err != nil {
			return err
		}
		for _, m := range plan {
			if err := applyStep(ctx, conn, m, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus сообщает применённые, ожидающие и изменённые миграции.
func (s *Store) MigrationStatus(ctx context.Context) (SchemaStatus, error) {
	if s == nil || s.db == nil {
		return SchemaStatus{}, fmt.Errorf("postgres store is not initialized")
	}
	set, err := parseMigrations(embeddedMigrations, migrationsDir)
	if err != nil {
		return SchemaStatus{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, schemaMigrationsDDL); err != nil {
		return SchemaStatus{}, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := loadApplied(queryCtx, s.db)
	if err != nil {
		return SchemaStatus{}, err
	}
	return set.status(applied), nil
}

// withMigrationLock выполняет fn на выделенном соединении под advisory lock.
func (s *Store) withMigrationLock(ctx context.Context, fn func(conn *sql.Conn, set migrationSet, applied map[int64]appliedMigration) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}
	set, err := parseMigrations(embeddedMigrations, migrationsDir)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", storefrontMigrationLock); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", storefrontMigrationLock)
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := loadApplied(ctx, conn)
	if err != nil {
		return err
	}
	return fn(conn, set, applied)
}

// applyStep выполняет одну миграцию и её учёт в schema_migrations в одной транзакции.
func applyStep(ctx context.Context, conn *sql.Conn, m migration, up bool) (err error) {
	direction, body := "up", m.up
	if !up {
		direction, body = "down", m.down
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s migration %s: %w", direction, m.id(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("%s migration %s: %w", direction, m.id(), err)
	}

	if up {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES ($1, $2, $3, $4)`,
			m.version, m.name, m.checksum, time.Now().UTC())
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.version)
	}
	if err != nil {
		return fmt.Errorf("record %s migration %s: %w", direction, m.id(), err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %s: %w", direction, m.id(), err)
	}
	return nil
}

type rowsQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadApplied(ctx context.Context, q rowsQueryer) (map[int64]appliedMigration, error) {
	rows, err := q.QueryContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]appliedMigration)
	for rows.Next() {
		var row appliedMigration
		if err := rows.Scan(&row.version, &row.checksum); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[row.version] = row
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema_migrations: %w", err)
	}
	return applied, nil
}
