// Package journal keeps an audit trail of inbound control commands in a
// local sqlite database.
package journal

import (
	"encoding/json"
	"time"

	"github.com/go-logr/logr"
	"github.com/jmoiron/sqlx"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

type Entry struct {
	ID         int64     `db:"id" json:"id"`
	At         time.Time `db:"at" json:"at"`
	Authorized bool      `db:"authorized" json:"authorized"`
	Applied_   string    `db:"applied" json:"-"`

	Applied map[string]string `json:"applied,omitempty"`
}

type Journal struct {
	db  *sqlx.DB
	log logr.Logger
}

func Open(log logr.Logger, path string) (*Journal, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		log.Error(err, "Failed to open journal database", "path", path)
		return nil, err
	}
	j := &Journal{db: db, log: log.WithName("journal")}
	if err := j.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) createTable() error {
	schema := `
    CREATE TABLE IF NOT EXISTS commands (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        at TIMESTAMP NOT NULL,
        authorized BOOLEAN NOT NULL,
        applied TEXT
    );`
	_, err := j.db.Exec(schema)
	return err
}

// Record satisfies control.Recorder. Journal failures are logged, never
// surfaced: the audit trail must not break command handling.
func (j *Journal) Record(at time.Time, authorized bool, applied map[string]string) {
	var appliedJSON []byte
	if len(applied) > 0 {
		appliedJSON, _ = json.Marshal(applied)
	}
	_, err := j.db.Exec(
		`INSERT INTO commands (at, authorized, applied) VALUES ($1, $2, $3)`,
		at, authorized, string(appliedJSON))
	if err != nil {
		j.log.Error(err, "Failed to record command")
	}
}

// Recent returns the newest n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	var entries []Entry
	err := j.db.Select(&entries,
		`SELECT id, at, authorized, applied FROM commands ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Applied_ != "" {
			if err := json.Unmarshal([]byte(entries[i].Applied_), &entries[i].Applied); err != nil {
				j.log.Error(err, "Corrupt applied column", "id", entries[i].ID)
			}
		}
	}
	return entries, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
