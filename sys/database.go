package sys

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	_ "github.com/mattn/go-sqlite3"
)

var DB *sql.DB

func InitDatabase(ctx context.Context, dataSourceName string) error {
	var err error
	DB, err = sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return err
	}

	DB.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := DB.ExecContext(initCtx, p); err != nil {
			return fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS admins (
			user_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS track_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uri TEXT NOT NULL,
			label TEXT NOT NULL,
			requested_by TEXT NOT NULL,
			queued_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	tx, err := DB.BeginTx(initCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range tables {
		if _, err := tx.ExecContext(initCtx, t); err != nil {
			return fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

func CloseDatabase() {
	if DB != nil {
		_ = DB.Close()
		DB = nil
	}
}

// --- Bot Config ---

func GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := DB.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func SetBotConfig(ctx context.Context, key, value string) error {
	_, err := DB.ExecContext(ctx,
		"INSERT INTO bot_config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// --- Admins ---

// GetAdmins loads the persisted admin list. The session engine receives this
// as its initial admin map and never touches the database itself.
func GetAdmins(ctx context.Context) (map[snowflake.ID]string, error) {
	rows, err := DB.QueryContext(ctx, "SELECT user_id, display_name FROM admins")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	admins := make(map[snowflake.ID]string)
	for rows.Next() {
		var idStr, name string
		if err := rows.Scan(&idStr, &name); err != nil {
			return nil, err
		}
		id, err := snowflake.Parse(idStr)
		if err != nil {
			continue
		}
		admins[id] = name
	}
	return admins, rows.Err()
}

func AddAdmin(ctx context.Context, userID snowflake.ID, displayName string) error {
	_, err := DB.ExecContext(ctx,
		"INSERT INTO admins (user_id, display_name) VALUES (?, ?) ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name",
		userID.String(), displayName)
	return err
}

func RemoveAdmin(ctx context.Context, userID snowflake.ID) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM admins WHERE user_id = ?", userID.String())
	return err
}

// --- Track History ---

func AddTrackHistory(ctx context.Context, uri, label string, requestedBy snowflake.ID) error {
	_, err := DB.ExecContext(ctx,
		"INSERT INTO track_history (uri, label, requested_by) VALUES (?, ?, ?)",
		uri, label, requestedBy.String())
	return err
}

func GetTrackHistoryCount(ctx context.Context) (int, error) {
	var count int
	err := DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM track_history").Scan(&count)
	return count, err
}

type HistoryEntry struct {
	URI         string
	Label       string
	RequestedBy string
	QueuedAt    time.Time
}

func GetRecentTracks(ctx context.Context, limit int) ([]HistoryEntry, error) {
	rows, err := DB.QueryContext(ctx,
		"SELECT uri, label, requested_by, queued_at FROM track_history ORDER BY queued_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.URI, &e.Label, &e.RequestedBy, &e.QueuedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
