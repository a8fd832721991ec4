package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
)

// Tenant roles under which user sets are stored in a snapshot.
const (
	roleSource      = "source"
	roleDestination = "destination"
)

// setupSnapshotDB opens (creating if needed) the local snapshot database.
func setupSnapshotDB(ctx context.Context, dbName string) (*sql.DB, error) {
	// Add pragma for performance, accepting the risk of DB corruption on crash.
	dsn := fmt.Sprintf("file:%s?_pragma=synchronous(OFF)", dbName)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	createTableSQL := `CREATE TABLE IF NOT EXISTS tenantUsers (
		tenantRole TEXT,
		objectId TEXT,
		userPrincipalName TEXT,
		attributes TEXT
	);`
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create tenantUsers table: %w", err)
	}
	createRoleIndexSQL := `CREATE INDEX IF NOT EXISTS idx_tenantRole ON tenantUsers (tenantRole);`
	if _, err := db.ExecContext(ctx, createRoleIndexSQL); err != nil {
		return nil, fmt.Errorf("failed to create tenantRole index: %w", err)
	}
	createUserIndexSQL := `CREATE UNIQUE INDEX IF NOT EXISTS idx_roleUpn ON tenantUsers (tenantRole, userPrincipalName);`
	if _, err := db.ExecContext(ctx, createUserIndexSQL); err != nil {
		return nil, fmt.Errorf("failed to create principal name index: %w", err)
	}
	return db, nil
}

// saveSnapshot replaces one tenant role's stored user set with the given
// records. Attribute maps are stored as JSON text.
func saveSnapshot(ctx context.Context, db *sql.DB, role string, users []UserRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tenantUsers WHERE tenantRole = ?`, role); err != nil {
		return fmt.Errorf("failed to clear %s snapshot: %w", role, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tenantUsers (tenantRole, objectId, userPrincipalName, attributes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		attrs, err := json.Marshal(u.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode attributes for %s: %w", u.UPN, err)
		}
		if _, err := stmt.ExecContext(ctx, role, u.ID, u.UPN, string(attrs)); err != nil {
			return fmt.Errorf("failed to insert snapshot row for %s: %w", u.UPN, err)
		}
	}
	return tx.Commit()
}

// cachedDirectory lists users from a snapshot instead of the Graph API.
// Updates always go to the live API, so a stale snapshot only affects what
// the operator is shown, never what is written.
type cachedDirectory struct {
	db   *sql.DB
	role string
}

func openSnapshot(path string) (*sql.DB, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		// This should have been caught by validation in LoadConfig, but check again.
		return nil, fmt.Errorf("could not stat cache file: %w", err)
	}
	log.Info().Msgf("Remark: Listing users from snapshot %s (last modified: %s). Data may be outdated.", path, fileInfo.ModTime().Format(time.RFC1123))
	log.Info().Msg("Remark: Merges are still applied to the live directory API.")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	return db, nil
}

func (c *cachedDirectory) listUsers(ctx context.Context, attrs []string) ([]UserRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT objectId, userPrincipalName, attributes FROM tenantUsers WHERE tenantRole = ? ORDER BY rowid`, c.role)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s snapshot: %w", c.role, err)
	}
	defer rows.Close()

	var users []UserRecord
	for rows.Next() {
		var id, upn, attrJSON sql.NullString
		if err := rows.Scan(&id, &upn, &attrJSON); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		stored := make(map[string]any)
		if attrJSON.String != "" {
			if err := json.Unmarshal([]byte(attrJSON.String), &stored); err != nil {
				return nil, fmt.Errorf("failed to decode attributes for %s: %w", upn.String, err)
			}
		}
		attributes := make(map[string]any, len(stored))
		for name, val := range stored {
			attributes[name] = decodeSnapshotValue(val)
		}
		users = append(users, UserRecord{ID: id.String, UPN: upn.String, Attributes: attributes})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during snapshot row iteration: %w", err)
	}
	return users, nil
}

// decodeSnapshotValue undoes the JSON round-trip: multi-valued attributes
// come back as []any and must return to []string.
func decodeSnapshotValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return v
	}
}
