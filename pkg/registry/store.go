// CLAUDE:SUMMARY SQLite-backed local copy of the ABN register, searchable by ABN or name; implements the lookup service offline.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/abnlookup/pkg/abn"
)

// DefaultLimit caps name search results.
const DefaultLimit = 20

// Store is the local register database.
type Store struct {
	db    *sql.DB
	limit int
}

const schema = `
CREATE TABLE IF NOT EXISTS businesses (
	abn          TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	name_key     TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT '',
	entity_type  TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	postcode     TEXT NOT NULL DEFAULT '',
	gst          TEXT NOT NULL DEFAULT '',
	attributes   TEXT NOT NULL DEFAULT '',
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_businesses_name_key ON businesses(name_key);
CREATE TABLE IF NOT EXISTS business_names (
	abn       TEXT NOT NULL,
	name      TEXT NOT NULL,
	name_key  TEXT NOT NULL,
	PRIMARY KEY (abn, name_key)
);
CREATE INDEX IF NOT EXISTS idx_business_names_key ON business_names(name_key);
`

// Open opens (or creates) the register at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open register: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create register schema: %w", err)
	}
	return &Store{db: db, limit: DefaultLimit}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetLimit changes the maximum number of name search results.
func (s *Store) SetLimit(n int) {
	if n > 0 {
		s.limit = n
	}
}

// Upsert inserts or merges records in one transaction. Empty fields of an
// incoming record do not overwrite stored values, so partial sources can be
// layered over each other.
func (s *Store) Upsert(ctx context.Context, recs ...abn.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	bizStmt, err := tx.PrepareContext(ctx, `INSERT INTO businesses
		(abn, name, name_key, status, entity_type, state, postcode, gst, attributes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(abn) DO UPDATE SET
			name        = CASE WHEN excluded.name != '' THEN excluded.name ELSE businesses.name END,
			name_key    = CASE WHEN excluded.name != '' THEN excluded.name_key ELSE businesses.name_key END,
			status      = CASE WHEN excluded.status != '' THEN excluded.status ELSE businesses.status END,
			entity_type = CASE WHEN excluded.entity_type != '' THEN excluded.entity_type ELSE businesses.entity_type END,
			state       = CASE WHEN excluded.state != '' THEN excluded.state ELSE businesses.state END,
			postcode    = CASE WHEN excluded.postcode != '' THEN excluded.postcode ELSE businesses.postcode END,
			gst         = CASE WHEN excluded.gst != '' THEN excluded.gst ELSE businesses.gst END,
			attributes  = CASE WHEN excluded.attributes != '' THEN excluded.attributes ELSE businesses.attributes END,
			updated_at  = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer bizStmt.Close()

	nameStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO business_names (abn, name, name_key) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare business name: %w", err)
	}
	defer nameStmt.Close()

	now := time.Now().Unix()
	for _, r := range recs {
		if r.ABN == "" {
			continue
		}
		attrs := ""
		if len(r.Attributes) > 0 {
			b, err := json.Marshal(r.Attributes)
			if err != nil {
				return fmt.Errorf("encode attributes for %s: %w", r.ABN, err)
			}
			attrs = string(b)
		}
		if _, err := bizStmt.ExecContext(ctx, r.ABN, r.Name, NameKey(r.Name), r.Status, r.EntityType,
			r.State, r.Postcode, r.GST, attrs, now); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ABN, err)
		}
		for _, bn := range r.BusinessNames {
			key := NameKey(bn)
			if key == "" {
				continue
			}
			if _, err := nameStmt.ExecContext(ctx, r.ABN, bn, key); err != nil {
				return fmt.Errorf("insert business name for %s: %w", r.ABN, err)
			}
		}
	}
	return tx.Commit()
}

// Count returns the number of businesses in the register.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM businesses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count businesses: %w", err)
	}
	return n, nil
}

const selectColumns = `b.abn, b.name, b.status, b.entity_type, b.state, b.postcode, b.gst, b.attributes`

// SearchByABN returns the stored record, or nil when the ABN is unknown.
func (s *Store) SearchByABN(ctx context.Context, id string) (*abn.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM businesses b WHERE b.abn = ?`, id)
	var r abn.Record
	var attrs string
	err := row.Scan(&r.ABN, &r.Name, &r.Status, &r.EntityType, &r.State, &r.Postcode, &r.GST, &attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	if err := decodeAttributes(attrs, &r); err != nil {
		return nil, err
	}
	if r.BusinessNames, err = s.businessNames(ctx, r.ABN); err != nil {
		return nil, err
	}
	return &r, nil
}

// SearchByName matches entity and business names containing name. Exact
// matches rank first, then prefix matches, then the rest; ties sort by name.
func (s *Store) SearchByName(ctx context.Context, name string) ([]abn.Record, error) {
	key := NameKey(name)
	if key == "" {
		return []abn.Record{}, nil
	}
	esc := likeEscape(key)
	prefix := esc + "%"
	contains := "%" + esc + "%"

	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+`,
			MIN(CASE WHEN m.key = ? THEN 0 WHEN m.key LIKE ? ESCAPE '\' THEN 1 ELSE 2 END) AS match_rank
		FROM (
			SELECT abn, name_key AS key FROM businesses WHERE name_key LIKE ? ESCAPE '\'
			UNION ALL
			SELECT abn, name_key AS key FROM business_names WHERE name_key LIKE ? ESCAPE '\'
		) m
		JOIN businesses b ON b.abn = m.abn
		GROUP BY b.abn
		ORDER BY match_rank, b.name
		LIMIT ?`, key, prefix, contains, contains, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search name %q: %w", name, err)
	}
	defer rows.Close()

	recs := []abn.Record{}
	for rows.Next() {
		var r abn.Record
		var attrs string
		var rank int
		if err := rows.Scan(&r.ABN, &r.Name, &r.Status, &r.EntityType, &r.State, &r.Postcode, &r.GST, &attrs, &rank); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		if err := decodeAttributes(attrs, &r); err != nil {
			return nil, err
		}
		r.Score = 100 - 10*rank
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range recs {
		names, err := s.businessNames(ctx, recs[i].ABN)
		if err != nil {
			return nil, err
		}
		recs[i].BusinessNames = names
	}
	return recs, nil
}

func (s *Store) businessNames(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM business_names WHERE abn = ? ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("business names for %s: %w", id, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan business name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func decodeAttributes(s string, r *abn.Record) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &r.Attributes); err != nil {
		return fmt.Errorf("decode attributes for %s: %w", r.ABN, err)
	}
	return nil
}
