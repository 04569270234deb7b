package claimlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Golumpa/hoyolab-auto-login/internal/domain/model"
)

const dateLayout = "2006-01-02"

// Store is a write-only audit journal of claim outcomes. Nothing in the
// claim path reads it; whether a reward is claimable is always answered
// by the platform.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) init() error {
	createStmt := `CREATE TABLE IF NOT EXISTS claim_logs (
        uid TEXT NOT NULL,
        game_biz TEXT NOT NULL,
        claim_date TEXT NOT NULL,
        outcome TEXT NOT NULL,
        status TEXT,
        reward_name TEXT,
        reward_count INTEGER NOT NULL DEFAULT 0,
        total_sign_day INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY(uid, game_biz, claim_date)
    )`
	if _, err := s.db.Exec(createStmt); err != nil {
		return err
	}
	return s.ensureColumns()
}

func (s *Store) ensureColumns() error {
	columns := map[string]bool{}
	rows, err := s.db.Query(`PRAGMA table_info(claim_logs)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		columns[strings.ToLower(name)] = true
	}

	alterStatements := []string{}
	addColumn := func(name, definition string) {
		if !columns[name] {
			alterStatements = append(alterStatements, definition)
		}
	}

	addColumn("status", `ALTER TABLE claim_logs ADD COLUMN status TEXT`)
	addColumn("reward_name", `ALTER TABLE claim_logs ADD COLUMN reward_name TEXT`)
	addColumn("reward_count", `ALTER TABLE claim_logs ADD COLUMN reward_count INTEGER NOT NULL DEFAULT 0`)
	addColumn("total_sign_day", `ALTER TABLE claim_logs ADD COLUMN total_sign_day INTEGER NOT NULL DEFAULT 0`)

	for _, stmt := range alterStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordResult upserts the journal row for one finished claim cycle.
// Re-runs on the same day overwrite the earlier outcome.
func (s *Store) RecordResult(result model.GameResult, day time.Time) error {
	dateStr := day.UTC().Format(dateLayout)

	_, err := s.db.Exec(`INSERT INTO claim_logs(uid, game_biz, claim_date, outcome, status, reward_name, reward_count, total_sign_day)
    VALUES(?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(uid, game_biz, claim_date) DO UPDATE SET
        outcome = excluded.outcome,
        status = excluded.status,
        reward_name = excluded.reward_name,
        reward_count = excluded.reward_count,
        total_sign_day = excluded.total_sign_day`,
		result.Account.UID, result.Biz, dateStr, string(result.Outcome),
		result.Status, result.Reward.Name, result.Reward.Count, result.TotalSignDay)
	return err
}
