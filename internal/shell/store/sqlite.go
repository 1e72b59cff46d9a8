package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Group Operations
// =============================================================================

// groupRow represents an application group row. Members are not persisted;
// they are rebuilt from the definition text on load.
type groupRow struct {
	Name      string `db:"name"`
	DSLText   string `db:"dsl_text"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLiteStore) SaveGroup(ctx context.Context, def definition.GroupDefinition, force bool) error {
	return saveGroup(ctx, s.db, def, force)
}

func (s *SQLiteStore) FindGroup(ctx context.Context, name string) (definition.GroupDefinition, error) {
	return findGroup(ctx, s.db, name)
}

func (s *SQLiteStore) ListGroups(ctx context.Context) ([]definition.GroupDefinition, error) {
	return listGroups(ctx, s.db)
}

func (s *SQLiteStore) DeleteGroup(ctx context.Context, name string) error {
	return deleteGroup(ctx, s.db, name)
}

// =============================================================================
// Member Definition Operations
// =============================================================================

// definitionRow represents a member definition row.
type definitionRow struct {
	Kind      string `db:"kind"`
	Name      string `db:"name"`
	DSLText   string `db:"dsl_text"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLiteStore) DefinitionExists(ctx context.Context, kind dsl.Kind, name string) (bool, error) {
	return definitionExists(ctx, s.db, kind, name)
}

func (s *SQLiteStore) FindDefinition(ctx context.Context, kind dsl.Kind, name string) (definition.MemberDefinition, error) {
	return findDefinition(ctx, s.db, kind, name)
}

func (s *SQLiteStore) SaveDefinition(ctx context.Context, def definition.MemberDefinition, force bool) error {
	return saveDefinition(ctx, s.db, def, force)
}

func (s *SQLiteStore) DeleteDefinition(ctx context.Context, kind dsl.Kind, name string) error {
	return deleteDefinition(ctx, s.db, kind, name)
}

func (s *SQLiteStore) ListDefinitions(ctx context.Context, kind dsl.Kind) ([]definition.MemberDefinition, error) {
	return listDefinitions(ctx, s.db, kind)
}

// =============================================================================
// Deployment Marker Operations
// =============================================================================

// markerRow represents a deployment marker row.
type markerRow struct {
	GroupName    string `db:"group_name"`
	DeploymentID string `db:"deployment_id"`
	CreatedAt    string `db:"created_at"`
}

func (s *SQLiteStore) FindMarker(ctx context.Context, group string) (string, error) {
	return findMarker(ctx, s.db, group)
}

func (s *SQLiteStore) SaveMarker(ctx context.Context, group, deploymentID string) error {
	return saveMarker(ctx, s.db, group, deploymentID)
}

func (s *SQLiteStore) DeleteMarker(ctx context.Context, group string) error {
	return deleteMarker(ctx, s.db, group)
}

// =============================================================================
// App Registration Operations
// =============================================================================

// registrationRow represents an app registration row.
type registrationRow struct {
	Kind      string `db:"kind"`
	Name      string `db:"name"`
	URI       string `db:"uri"`
	CreatedAt string `db:"created_at"`
}

func (s *SQLiteStore) FindRegistration(ctx context.Context, kind dsl.Kind, name string) (definition.AppRegistration, error) {
	return findRegistration(ctx, s.db, kind, name)
}

func (s *SQLiteStore) SaveRegistration(ctx context.Context, reg definition.AppRegistration, force bool) error {
	return saveRegistration(ctx, s.db, reg, force)
}

func (s *SQLiteStore) DeleteRegistration(ctx context.Context, kind dsl.Kind, name string) error {
	return deleteRegistration(ctx, s.db, kind, name)
}

func (s *SQLiteStore) ListRegistrations(ctx context.Context) ([]definition.AppRegistration, error) {
	return listRegistrations(ctx, s.db)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) SaveGroup(ctx context.Context, def definition.GroupDefinition, force bool) error {
	return saveGroup(ctx, s.tx, def, force)
}

func (s *txSQLiteStore) FindGroup(ctx context.Context, name string) (definition.GroupDefinition, error) {
	return findGroup(ctx, s.tx, name)
}

func (s *txSQLiteStore) ListGroups(ctx context.Context) ([]definition.GroupDefinition, error) {
	return listGroups(ctx, s.tx)
}

func (s *txSQLiteStore) DeleteGroup(ctx context.Context, name string) error {
	return deleteGroup(ctx, s.tx, name)
}

func (s *txSQLiteStore) DefinitionExists(ctx context.Context, kind dsl.Kind, name string) (bool, error) {
	return definitionExists(ctx, s.tx, kind, name)
}

func (s *txSQLiteStore) FindDefinition(ctx context.Context, kind dsl.Kind, name string) (definition.MemberDefinition, error) {
	return findDefinition(ctx, s.tx, kind, name)
}

func (s *txSQLiteStore) SaveDefinition(ctx context.Context, def definition.MemberDefinition, force bool) error {
	return saveDefinition(ctx, s.tx, def, force)
}

func (s *txSQLiteStore) DeleteDefinition(ctx context.Context, kind dsl.Kind, name string) error {
	return deleteDefinition(ctx, s.tx, kind, name)
}

func (s *txSQLiteStore) ListDefinitions(ctx context.Context, kind dsl.Kind) ([]definition.MemberDefinition, error) {
	return listDefinitions(ctx, s.tx, kind)
}

func (s *txSQLiteStore) FindMarker(ctx context.Context, group string) (string, error) {
	return findMarker(ctx, s.tx, group)
}

func (s *txSQLiteStore) SaveMarker(ctx context.Context, group, deploymentID string) error {
	return saveMarker(ctx, s.tx, group, deploymentID)
}

func (s *txSQLiteStore) DeleteMarker(ctx context.Context, group string) error {
	return deleteMarker(ctx, s.tx, group)
}

func (s *txSQLiteStore) FindRegistration(ctx context.Context, kind dsl.Kind, name string) (definition.AppRegistration, error) {
	return findRegistration(ctx, s.tx, kind, name)
}

func (s *txSQLiteStore) SaveRegistration(ctx context.Context, reg definition.AppRegistration, force bool) error {
	return saveRegistration(ctx, s.tx, reg, force)
}

func (s *txSQLiteStore) DeleteRegistration(ctx context.Context, kind dsl.Kind, name string) error {
	return deleteRegistration(ctx, s.tx, kind, name)
}

func (s *txSQLiteStore) ListRegistrations(ctx context.Context) ([]definition.AppRegistration, error) {
	return listRegistrations(ctx, s.tx)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func saveGroup(ctx context.Context, exec executor, def definition.GroupDefinition, force bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO application_groups (name, dsl_text, created_at, updated_at)
		VALUES (:name, :dsl_text, :created_at, :updated_at)`
	if force {
		query += `
		ON CONFLICT(name) DO UPDATE SET
			dsl_text = excluded.dsl_text,
			updated_at = excluded.updated_at`
	}

	row := map[string]any{
		"name":       def.Name,
		"dsl_text":   def.DSLText,
		"created_at": now,
		"updated_at": now,
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: application_groups.name") {
			return NewStoreError("SaveGroup", "group", def.Name, "application group with this name already exists", ErrAlreadyExists)
		}
		return NewStoreError("SaveGroup", "group", def.Name, err.Error(), err)
	}

	return nil
}

func findGroup(ctx context.Context, exec executor, name string) (definition.GroupDefinition, error) {
	query := `SELECT * FROM application_groups WHERE name = ?`

	var row groupRow
	err := exec.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return definition.GroupDefinition{}, NewStoreError("FindGroup", "group", name, "application group not found", ErrNotFound)
		}
		return definition.GroupDefinition{}, NewStoreError("FindGroup", "group", name, err.Error(), err)
	}

	return rowToGroup(row)
}

func listGroups(ctx context.Context, exec executor) ([]definition.GroupDefinition, error) {
	query := `SELECT * FROM application_groups ORDER BY name`

	var rows []groupRow
	err := exec.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, NewStoreError("ListGroups", "group", "", err.Error(), err)
	}

	groups := make([]definition.GroupDefinition, 0, len(rows))
	for _, row := range rows {
		group, err := rowToGroup(row)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return groups, nil
}

func deleteGroup(ctx context.Context, exec executor, name string) error {
	query := `DELETE FROM application_groups WHERE name = ?`

	result, err := exec.ExecContext(ctx, query, name)
	if err != nil {
		return NewStoreError("DeleteGroup", "group", name, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteGroup", "group", name, "application group not found", ErrNotFound)
	}

	return nil
}

func definitionExists(ctx context.Context, exec executor, kind dsl.Kind, name string) (bool, error) {
	query := `SELECT COUNT(1) FROM member_definitions WHERE kind = ? AND name = ?`

	var count int
	err := exec.GetContext(ctx, &count, query, string(kind), name)
	if err != nil {
		return false, NewStoreError("DefinitionExists", "definition", definitionKey(kind, name), err.Error(), err)
	}

	return count > 0, nil
}

func findDefinition(ctx context.Context, exec executor, kind dsl.Kind, name string) (definition.MemberDefinition, error) {
	query := `SELECT * FROM member_definitions WHERE kind = ? AND name = ?`

	var row definitionRow
	err := exec.GetContext(ctx, &row, query, string(kind), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return definition.MemberDefinition{}, NewStoreError("FindDefinition", "definition", definitionKey(kind, name), "definition not found", ErrNotFound)
		}
		return definition.MemberDefinition{}, NewStoreError("FindDefinition", "definition", definitionKey(kind, name), err.Error(), err)
	}

	return rowToDefinition(row), nil
}

func saveDefinition(ctx context.Context, exec executor, def definition.MemberDefinition, force bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO member_definitions (kind, name, dsl_text, created_at, updated_at)
		VALUES (:kind, :name, :dsl_text, :created_at, :updated_at)`
	if force {
		query += `
		ON CONFLICT(kind, name) DO UPDATE SET
			dsl_text = excluded.dsl_text,
			updated_at = excluded.updated_at`
	}

	row := map[string]any{
		"kind":       string(def.Kind),
		"name":       def.Name,
		"dsl_text":   def.DSLText,
		"created_at": now,
		"updated_at": now,
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: member_definitions.kind, member_definitions.name") {
			return NewStoreError("SaveDefinition", "definition", definitionKey(def.Kind, def.Name), "definition with this name already exists", ErrAlreadyExists)
		}
		return NewStoreError("SaveDefinition", "definition", definitionKey(def.Kind, def.Name), err.Error(), err)
	}

	return nil
}

func deleteDefinition(ctx context.Context, exec executor, kind dsl.Kind, name string) error {
	query := `DELETE FROM member_definitions WHERE kind = ? AND name = ?`

	result, err := exec.ExecContext(ctx, query, string(kind), name)
	if err != nil {
		return NewStoreError("DeleteDefinition", "definition", definitionKey(kind, name), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteDefinition", "definition", definitionKey(kind, name), "definition not found", ErrNotFound)
	}

	return nil
}

func listDefinitions(ctx context.Context, exec executor, kind dsl.Kind) ([]definition.MemberDefinition, error) {
	query := `SELECT * FROM member_definitions WHERE kind = ? ORDER BY name`

	var rows []definitionRow
	err := exec.SelectContext(ctx, &rows, query, string(kind))
	if err != nil {
		return nil, NewStoreError("ListDefinitions", "definition", string(kind), err.Error(), err)
	}

	defs := make([]definition.MemberDefinition, 0, len(rows))
	for _, row := range rows {
		defs = append(defs, rowToDefinition(row))
	}

	return defs, nil
}

func findMarker(ctx context.Context, exec executor, group string) (string, error) {
	query := `SELECT * FROM deployment_markers WHERE group_name = ?`

	var row markerRow
	err := exec.GetContext(ctx, &row, query, group)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NewStoreError("FindMarker", "marker", group, "no deployment marker for group", ErrNotFound)
		}
		return "", NewStoreError("FindMarker", "marker", group, err.Error(), err)
	}

	return row.DeploymentID, nil
}

func saveMarker(ctx context.Context, exec executor, group, deploymentID string) error {
	query := `
		INSERT INTO deployment_markers (group_name, deployment_id, created_at)
		VALUES (:group_name, :deployment_id, :created_at)`

	row := map[string]any{
		"group_name":    group,
		"deployment_id": deploymentID,
		"created_at":    time.Now().UTC().Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployment_markers.group_name") {
			return NewStoreError("SaveMarker", "marker", group, "group already has a deployment marker", ErrAlreadyExists)
		}
		return NewStoreError("SaveMarker", "marker", group, err.Error(), err)
	}

	return nil
}

func deleteMarker(ctx context.Context, exec executor, group string) error {
	query := `DELETE FROM deployment_markers WHERE group_name = ?`

	// Deleting an absent marker is a no-op; undeploy must stay idempotent.
	_, err := exec.ExecContext(ctx, query, group)
	if err != nil {
		return NewStoreError("DeleteMarker", "marker", group, err.Error(), err)
	}

	return nil
}

func findRegistration(ctx context.Context, exec executor, kind dsl.Kind, name string) (definition.AppRegistration, error) {
	query := `SELECT * FROM app_registrations WHERE kind = ? AND name = ?`

	var row registrationRow
	err := exec.GetContext(ctx, &row, query, string(kind), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return definition.AppRegistration{}, NewStoreError("FindRegistration", "registration", definitionKey(kind, name), "app registration not found", ErrNotFound)
		}
		return definition.AppRegistration{}, NewStoreError("FindRegistration", "registration", definitionKey(kind, name), err.Error(), err)
	}

	return rowToRegistration(row), nil
}

func saveRegistration(ctx context.Context, exec executor, reg definition.AppRegistration, force bool) error {
	query := `
		INSERT INTO app_registrations (kind, name, uri, created_at)
		VALUES (:kind, :name, :uri, :created_at)`
	if force {
		query += `
		ON CONFLICT(kind, name) DO UPDATE SET
			uri = excluded.uri`
	}

	row := map[string]any{
		"kind":       string(reg.Kind),
		"name":       reg.Name,
		"uri":        reg.URI,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: app_registrations.kind, app_registrations.name") {
			return NewStoreError("SaveRegistration", "registration", definitionKey(reg.Kind, reg.Name), "app with this kind and name is already registered", ErrAlreadyExists)
		}
		return NewStoreError("SaveRegistration", "registration", definitionKey(reg.Kind, reg.Name), err.Error(), err)
	}

	return nil
}

func deleteRegistration(ctx context.Context, exec executor, kind dsl.Kind, name string) error {
	query := `DELETE FROM app_registrations WHERE kind = ? AND name = ?`

	result, err := exec.ExecContext(ctx, query, string(kind), name)
	if err != nil {
		return NewStoreError("DeleteRegistration", "registration", definitionKey(kind, name), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteRegistration", "registration", definitionKey(kind, name), "app registration not found", ErrNotFound)
	}

	return nil
}

func listRegistrations(ctx context.Context, exec executor) ([]definition.AppRegistration, error) {
	query := `SELECT * FROM app_registrations ORDER BY kind, name`

	var rows []registrationRow
	err := exec.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, NewStoreError("ListRegistrations", "registration", "", err.Error(), err)
	}

	regs := make([]definition.AppRegistration, 0, len(rows))
	for _, row := range rows {
		regs = append(regs, rowToRegistration(row))
	}

	return regs, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

// rowToGroup rebuilds a GroupDefinition from a stored row. The member list
// is derived by re-parsing the definition text.
func rowToGroup(row groupRow) (definition.GroupDefinition, error) {
	def, err := definition.NewGroup(row.Name, row.DSLText)
	if err != nil {
		return definition.GroupDefinition{}, NewStoreError("rowToGroup", "group", row.Name, "stored definition no longer parses: "+err.Error(), ErrInvalidData)
	}
	return def, nil
}

func rowToDefinition(row definitionRow) definition.MemberDefinition {
	return definition.MemberDefinition{
		Kind:    dsl.Kind(row.Kind),
		Name:    row.Name,
		DSLText: row.DSLText,
	}
}

func rowToRegistration(row registrationRow) definition.AppRegistration {
	return definition.AppRegistration{
		Kind: dsl.Kind(row.Kind),
		Name: row.Name,
		URI:  row.URI,
	}
}

// definitionKey renders a (kind, name) pair for error context.
func definitionKey(kind dsl.Kind, name string) string {
	return string(kind) + "/" + name
}
