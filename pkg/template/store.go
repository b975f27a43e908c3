package template

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

// Store persists templates in a SQLite database. Rows hold the canonical CBOR
// encoding of a template and its xxhash fingerprint.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenStore opens or creates the template database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening template store: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS templates (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hash TEXT NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating templates table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func fingerprint(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Put writes t under id. It reports false when the stored row already has the
// same fingerprint and nothing was written.
func (s *Store) Put(id string, t *Template) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *t
	rec.ID = id
	data, err := encMode.Marshal(&rec)
	if err != nil {
		return false, fmt.Errorf("encoding template %s: %w", id, err)
	}
	hash := fingerprint(data)

	var old string
	err = s.db.QueryRow("SELECT hash FROM templates WHERE id = ?", id).Scan(&old)
	switch {
	case err == nil && old == hash:
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("querying template %s: %w", id, err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO templates (id, name, hash, data) VALUES (?, ?, ?, ?)",
		id, t.Name, hash, data,
	)
	if err != nil {
		return false, fmt.Errorf("saving template %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) Get(id string) (*Template, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM templates WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		return nil, fmt.Errorf("querying template %s: %w", id, err)
	}
	return decodeRow(id, data)
}

// List returns every stored template ordered by id.
func (s *Store) List() ([]*Template, error) {
	rows, err := s.db.Query("SELECT id, data FROM templates ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning template row: %w", err)
		}
		t, err := decodeRow(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return nil
}

func decodeRow(id string, data []byte) (*Template, error) {
	var t Template
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding template %s: %w", id, err)
	}
	t.ID = id
	return &t, nil
}
