package registry

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLite, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("dbPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	_, _ = s.db.Exec("PRAGMA journal_mode = WAL")
	return execStatements(s.db, schemaSQL)
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Put(rec Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("registry is not open")
	}
	rec, err := validate(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO databases (root, dbpath, mode, mtime, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(root) DO UPDATE SET
		   dbpath=excluded.dbpath,
		   mode=excluded.mode,
		   mtime=excluded.mtime,
		   updated_at=excluded.updated_at`,
		rec.Root,
		rec.DBPath,
		rec.Mode,
		rec.MTime,
		rec.UpdatedAt.UnixNano(),
	)
	return err
}

func (s *SQLite) Get(root string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, fmt.Errorf("registry is not open")
	}
	row := s.db.QueryRow(`SELECT root, dbpath, mode, mtime, updated_at FROM databases WHERE root = ?`, strings.TrimSpace(root))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLite) List() ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("registry is not open")
	}
	rows, err := s.db.Query(`SELECT root, dbpath, mode, mtime, updated_at FROM databases ORDER BY root`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(root string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("registry is not open")
	}
	_, err := s.db.Exec(`DELETE FROM databases WHERE root = ?`, strings.TrimSpace(root))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var updated int64
	if err := sc.Scan(&rec.Root, &rec.DBPath, &rec.Mode, &rec.MTime, &updated); err != nil {
		return Record{}, err
	}
	rec.UpdatedAt = time.Unix(0, updated)
	return rec, nil
}

func execStatements(db *sql.DB, sqlText string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	sqlText = strings.ReplaceAll(sqlText, "\r\n", "\n")

	var cleaned strings.Builder
	for _, line := range strings.Split(sqlText, "\n") {
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteString("\n")
	}

	for _, raw := range strings.Split(cleaned.String(), ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
