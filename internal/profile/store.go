// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package profile persists user medical profiles in SQLite. There is at
// most one profile per user; writes upsert on the user id.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/pkg/types"
)

const defaultDBPath = "data/trialmatch.db"

// now is the clock used for UpdatedAt. Tests override it.
var now = func() time.Time { return time.Now().UTC() }

// Store manages the profile database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at cfg.DBPath and creates the
// schema if it does not exist.
func NewStore(cfg types.ProfileConfig) (*Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		conditions TEXT NOT NULL DEFAULT '',
		prior_treatments TEXT NOT NULL DEFAULT '',
		outcomes TEXT NOT NULL DEFAULT '',
		side_effects TEXT NOT NULL DEFAULT '',
		discontinuation_reasons TEXT NOT NULL DEFAULT '',
		documents TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Get returns the profile of userID, or an error matching
// errs.ErrProfileNotFound.
func (s *Store) Get(ctx context.Context, userID string) (types.UserProfile, error) {
	return get(ctx, s.db, userID)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, userID string) (types.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.UserProfile{}, errs.Invalid("user id", "must not be empty")
	}

	var (
		p         types.UserProfile
		docsJSON  string
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT user_id, conditions, prior_treatments, outcomes, side_effects,
		        discontinuation_reasons, documents, updated_at
		 FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Conditions, &p.PriorTreatments, &p.Outcomes, &p.SideEffects,
		&p.DiscontinuationReasons, &docsJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.UserProfile{}, fmt.Errorf("%w: %s", errs.ErrProfileNotFound, userID)
	}
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("querying profile: %w", err)
	}

	if err := json.Unmarshal([]byte(docsJSON), &p.Documents); err != nil {
		return types.UserProfile{}, fmt.Errorf("decoding documents of %s: %w", userID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return p, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Upsert inserts or replaces the profile of p.UserID and returns the
// stored profile with UpdatedAt set.
func (s *Store) Upsert(ctx context.Context, p types.UserProfile) (types.UserProfile, error) {
	return upsert(ctx, s.db, p)
}

func upsert(ctx context.Context, e execer, p types.UserProfile) (types.UserProfile, error) {
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return types.UserProfile{}, errs.Invalid("user id", "must not be empty")
	}
	if p.Documents == nil {
		p.Documents = []string{}
	}
	p.UpdatedAt = now()

	docsJSON, err := json.Marshal(p.Documents)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("encoding documents: %w", err)
	}

	_, err = e.ExecContext(ctx,
		`INSERT INTO profiles (user_id, conditions, prior_treatments, outcomes, side_effects,
		                       discontinuation_reasons, documents, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			conditions=excluded.conditions, prior_treatments=excluded.prior_treatments,
			outcomes=excluded.outcomes, side_effects=excluded.side_effects,
			discontinuation_reasons=excluded.discontinuation_reasons,
			documents=excluded.documents, updated_at=excluded.updated_at`,
		p.UserID, p.Conditions, p.PriorTreatments, p.Outcomes, p.SideEffects,
		p.DiscontinuationReasons, string(docsJSON), p.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("upserting profile: %w", err)
	}
	return p, nil
}

// update reads the profile of userID (or starts an empty one), applies fn,
// and writes it back in one transaction.
func (s *Store) update(ctx context.Context, userID string, fn func(*types.UserProfile)) (types.UserProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := get(ctx, tx, userID)
	if errors.Is(err, errs.ErrProfileNotFound) {
		p, err = types.UserProfile{UserID: strings.TrimSpace(userID)}, nil
	}
	if err != nil {
		return types.UserProfile{}, err
	}

	fn(&p)

	stored, err := upsert(ctx, tx, p)
	if err != nil {
		return types.UserProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.UserProfile{}, fmt.Errorf("committing profile: %w", err)
	}
	return stored, nil
}

// AddDocuments records document references on the profile of userID,
// creating the profile when needed. References already present are kept once.
func (s *Store) AddDocuments(ctx context.Context, userID string, docs ...string) (types.UserProfile, error) {
	return s.update(ctx, userID, func(p *types.UserProfile) {
		seen := make(map[string]bool, len(p.Documents))
		for _, d := range p.Documents {
			seen[d] = true
		}
		for _, d := range docs {
			if d = strings.TrimSpace(d); d != "" && !seen[d] {
				p.Documents = append(p.Documents, d)
				seen[d] = true
			}
		}
	})
}

// ApplyDocument merges entities extracted from source into the profile of
// userID, creating the profile when needed.
func (s *Store) ApplyDocument(ctx context.Context, userID string, doc types.ParsedDocument, source string) (types.UserProfile, error) {
	return s.update(ctx, userID, func(p *types.UserProfile) {
		doc.MergeInto(p, source)
	})
}

// List returns every stored profile ordered by user id.
func (s *Store) List(ctx context.Context) ([]types.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning profile id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	out := make([]types.UserProfile, 0, len(ids))
	for _, id := range ids {
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
