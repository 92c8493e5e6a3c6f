// Package sqlite is an embedded single-file store with the same contract as the PostgreSQL
// repository. Vectors are stored as pgvector text literals.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Memory opens a private in-memory database.
const Memory = ":memory:"

// Store is a SQLite-backed store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies pending migrations.
// Pass Memory for an in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != Memory {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()

			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parse migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %d: %w", version, err)
		}

		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		err = s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return fmt.Errorf("apply migration %d: %w", version, err)
			}

			_, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
				version, formatTime(s.now()))

			return err
		})
		if err != nil {
			return err
		}

		slog.Debug("applied sqlite migration", "version", version)
	}

	return nil
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// LoadSnapshot reads customers and feedback inside one transaction.
func (s *Store) LoadSnapshot(ctx context.Context, includeUnembedded bool) (models.Snapshot, error) {
	var snap models.Snapshot

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		customers, err := loadCustomers(ctx, tx)
		if err != nil {
			return err
		}

		snap.Customers = customers

		query := `SELECT id, source, source_id, text, embedding, customer_id, account, metadata, created_at FROM feedback`
		if !includeUnembedded {
			query += ` WHERE embedding IS NOT NULL`
		}

		rows, err := tx.QueryContext(ctx, query+` ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return fmt.Errorf("load feedback: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				item      models.FeedbackItem
				vec       *pgvector.Vector
				metadata  sql.NullString
				createdAt string
			)

			if err := rows.Scan(&item.ID, &item.Source, &item.SourceID, &item.Text, &vec,
				&item.CustomerID, &item.Account, &metadata, &createdAt); err != nil {
				return fmt.Errorf("scan feedback: %w", err)
			}

			if item.Metadata, err = decodeMetadata(metadata); err != nil {
				return err
			}

			if item.CreatedAt, err = parseTime(createdAt); err != nil {
				return err
			}

			if vec == nil {
				snap.Unembedded = append(snap.Unembedded, item)
				continue
			}

			item.Embedding = vec.Slice()
			snap.Feedback = append(snap.Feedback, item)
		}

		return rows.Err()
	})
	if err != nil {
		return models.Snapshot{}, huberrors.NewPersistenceError("load snapshot", err)
	}

	return snap, nil
}

func loadCustomers(ctx context.Context, tx *sql.Tx) (map[uuid.UUID]models.Customer, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name, acv, segment, metadata FROM customers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	defer rows.Close()

	customers := make(map[uuid.UUID]models.Customer)

	for rows.Next() {
		var (
			c        models.Customer
			metadata sql.NullString
		)

		if err := rows.Scan(&c.ID, &c.Name, &c.ACV, &c.Segment, &metadata); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}

		if c.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}

		customers[c.ID] = c
	}

	return customers, rows.Err()
}

// UpsertCustomers inserts customers or updates them by id.
func (s *Store) UpsertCustomers(ctx context.Context, customers []models.Customer) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range customers {
			metadata, err := encodeJSON(c.Metadata)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO customers (id, name, acv, segment, metadata)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					name = excluded.name,
					acv = excluded.acv,
					segment = excluded.segment,
					metadata = excluded.metadata`,
				c.ID, c.Name, c.ACV, c.Segment, metadata,
			)
			if err != nil {
				return fmt.Errorf("upsert customer %s: %w", c.ID, err)
			}
		}

		return nil
	})

	return persistence("upsert customers", err)
}

// UpsertFeedback inserts feedback or updates it by (source, source_id).
// Changing the text of an existing item clears its embedding.
func (s *Store) UpsertFeedback(ctx context.Context, items []models.FeedbackItem) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, f := range items {
			metadata, err := encodeJSON(f.Metadata)
			if err != nil {
				return err
			}

			var embedding any
			if len(f.Embedding) > 0 {
				embedding = pgvector.NewVector(f.Embedding)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO feedback (id, source, source_id, text, embedding, customer_id, account, metadata, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (source, source_id) DO UPDATE SET
					text = excluded.text,
					customer_id = excluded.customer_id,
					account = excluded.account,
					metadata = excluded.metadata,
					embedding = CASE WHEN feedback.text = excluded.text
						THEN COALESCE(excluded.embedding, feedback.embedding) ELSE excluded.embedding END`,
				f.ID, f.Source, f.SourceID, f.Text, embedding, f.CustomerID, f.Account, metadata, formatTime(f.CreatedAt),
			)
			if err != nil {
				return fmt.Errorf("upsert feedback %s/%s: %w", f.Source, f.SourceID, err)
			}
		}

		return nil
	})

	return persistence("upsert feedback", err)
}

// SaveEmbeddings writes embeddings back to their feedback rows.
func (s *Store) SaveEmbeddings(ctx context.Context, ids []uuid.UUID, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("save embeddings: %d ids for %d vectors", len(ids), len(vectors))
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i, id := range ids {
			if _, err := tx.ExecContext(ctx, `UPDATE feedback SET embedding = ? WHERE id = ?`,
				pgvector.NewVector(vectors[i]), id); err != nil {
				return err
			}
		}

		return nil
	})

	return persistence("save embeddings", err)
}

// ReplaceDerived atomically swaps all derived state. Competitive insights without a theme survive.
func (s *Store) ReplaceDerived(ctx context.Context, state models.DerivedState) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM insights WHERE category = ?`, models.CategoryCustomerFeedback); err != nil {
			return fmt.Errorf("delete insights: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM themes`); err != nil {
			return fmt.Errorf("delete themes: %w", err)
		}

		for _, t := range state.Themes {
			var centroid any
			if len(t.Centroid) > 0 {
				centroid = pgvector.NewVector(t.Centroid)
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO themes (id, label, description, centroid, version, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.ID, t.Label, t.Description, centroid, t.Version, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
			); err != nil {
				return fmt.Errorf("insert theme: %w", err)
			}
		}

		for _, l := range state.FeedbackThemes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO feedback_themes (feedback_id, theme_id, confidence) VALUES (?, ?, ?)`,
				l.FeedbackID, l.ThemeID, l.Confidence,
			); err != nil {
				return fmt.Errorf("insert feedback theme: %w", err)
			}
		}

		for _, m := range state.Metrics {
			if err := upsertMetrics(ctx, tx, m); err != nil {
				return err
			}
		}

		for _, in := range state.Insights {
			if err := insertInsight(ctx, tx, in); err != nil {
				return err
			}
		}

		for _, l := range state.InsightFeedback {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO insight_feedback (insight_id, feedback_id, relevance_score, is_key_quote) VALUES (?, ?, ?, ?)`,
				l.InsightID, l.FeedbackID, l.RelevanceScore, l.IsKeyQuote,
			); err != nil {
				return fmt.Errorf("insert insight feedback: %w", err)
			}
		}

		return nil
	})

	return persistence("replace derived state", err)
}

func upsertMetrics(ctx context.Context, tx *sql.Tx, m models.ThemeMetrics) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO theme_metrics (theme_id, freq_30d, freq_90d, acv_sum, sentiment, trend, dup_penalty, score, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (theme_id) DO UPDATE SET
			freq_30d = excluded.freq_30d,
			freq_90d = excluded.freq_90d,
			acv_sum = excluded.acv_sum,
			sentiment = excluded.sentiment,
			trend = excluded.trend,
			dup_penalty = excluded.dup_penalty,
			score = excluded.score,
			updated_at = excluded.updated_at`,
		m.ThemeID, m.Freq30d, m.Freq90d, m.ACVSum, m.Sentiment, m.Trend, m.DupPenalty, m.Score, formatTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert theme metrics: %w", err)
	}

	return nil
}

func insertInsight(ctx context.Context, tx *sql.Tx, in models.Insight) error {
	ids, err := encodeJSON(nonNil(in.SupportingFeedbackIDs))
	if err != nil {
		return err
	}

	customers, err := encodeJSON(nonNil(in.AffectedCustomers))
	if err != nil {
		return err
	}

	quotes, err := encodeJSON(nonNil(in.KeyQuotes))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO insights (
			id, theme_id, category, title, description, impact, recommendation, severity, effort,
			priority_score, supporting_feedback_ids, affected_customers, key_quotes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.ThemeID, in.Category, in.Title, in.Description, in.Impact, in.Recommendation,
		in.Severity, in.Effort, in.PriorityScore, ids, customers, quotes, formatTime(in.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}

	return nil
}

// LoadThemeMembership reads the current themes with their member feedback and all customers.
func (s *Store) LoadThemeMembership(ctx context.Context) (models.ThemeMembership, error) {
	out := models.ThemeMembership{Members: make(map[uuid.UUID][]models.FeedbackItem)}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		customers, err := loadCustomers(ctx, tx)
		if err != nil {
			return err
		}

		out.Customers = customers

		if out.Themes, err = loadThemes(ctx, tx); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT ft.theme_id, f.id, f.source, f.source_id, f.text, f.customer_id, f.account, f.created_at
			FROM feedback_themes ft
			JOIN feedback f ON f.id = ft.feedback_id
			ORDER BY ft.theme_id ASC, f.created_at ASC, f.id ASC`)
		if err != nil {
			return fmt.Errorf("load theme members: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				themeID   uuid.UUID
				item      models.FeedbackItem
				createdAt string
			)

			if err := rows.Scan(&themeID, &item.ID, &item.Source, &item.SourceID, &item.Text,
				&item.CustomerID, &item.Account, &createdAt); err != nil {
				return fmt.Errorf("scan theme member: %w", err)
			}

			if item.CreatedAt, err = parseTime(createdAt); err != nil {
				return err
			}

			out.Members[themeID] = append(out.Members[themeID], item)
		}

		return rows.Err()
	})
	if err != nil {
		return models.ThemeMembership{}, huberrors.NewPersistenceError("load theme membership", err)
	}

	return out, nil
}

func loadThemes(ctx context.Context, tx *sql.Tx) ([]models.Theme, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, label, description, centroid, version, created_at, updated_at
		FROM themes
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load themes: %w", err)
	}
	defer rows.Close()

	var themes []models.Theme

	for rows.Next() {
		var (
			t                    models.Theme
			centroid             *pgvector.Vector
			createdAt, updatedAt string
		)

		if err := rows.Scan(&t.ID, &t.Label, &t.Description, &centroid, &t.Version, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}

		if centroid != nil {
			t.Centroid = centroid.Slice()
		}

		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}

		themes = append(themes, t)
	}

	return themes, rows.Err()
}

// ReplaceMetrics upserts the metrics of existing themes in one transaction.
func (s *Store) ReplaceMetrics(ctx context.Context, metrics []models.ThemeMetrics) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range metrics {
			if err := upsertMetrics(ctx, tx, m); err != nil {
				return err
			}
		}

		return nil
	})

	return persistence("replace metrics", err)
}

// ThemeMetrics returns the stored metrics keyed by theme.
func (s *Store) ThemeMetrics(ctx context.Context) (map[uuid.UUID]models.ThemeMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT theme_id, freq_30d, freq_90d, acv_sum, sentiment, trend, dup_penalty, score, updated_at
		FROM theme_metrics`)
	if err != nil {
		return nil, persistence("load theme metrics", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]models.ThemeMetrics)

	for rows.Next() {
		var (
			m         models.ThemeMetrics
			updatedAt string
		)

		if err := rows.Scan(&m.ThemeID, &m.Freq30d, &m.Freq90d, &m.ACVSum, &m.Sentiment, &m.Trend,
			&m.DupPenalty, &m.Score, &updatedAt); err != nil {
			return nil, persistence("scan theme metrics", err)
		}

		if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, persistence("scan theme metrics", err)
		}

		out[m.ThemeID] = m
	}

	if err := rows.Err(); err != nil {
		return nil, persistence("iterate theme metrics", err)
	}

	return out, nil
}

// Insights returns every stored insight, highest priority first.
func (s *Store) Insights(ctx context.Context) ([]models.Insight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, theme_id, category, title, description, impact, recommendation, severity, effort,
		       priority_score, supporting_feedback_ids, affected_customers, key_quotes, created_at
		FROM insights
		ORDER BY priority_score DESC, created_at ASC, id ASC`)
	if err != nil {
		return nil, persistence("load insights", err)
	}
	defer rows.Close()

	var out []models.Insight

	for rows.Next() {
		var (
			in                     models.Insight
			ids, customers, quotes string
			createdAt              string
		)

		if err := rows.Scan(&in.ID, &in.ThemeID, &in.Category, &in.Title, &in.Description, &in.Impact,
			&in.Recommendation, &in.Severity, &in.Effort, &in.PriorityScore, &ids, &customers, &quotes,
			&createdAt); err != nil {
			return nil, persistence("scan insight", err)
		}

		if err := decodeJSON(ids, &in.SupportingFeedbackIDs); err != nil {
			return nil, persistence("decode insight", err)
		}

		if err := decodeJSON(customers, &in.AffectedCustomers); err != nil {
			return nil, persistence("decode insight", err)
		}

		if err := decodeJSON(quotes, &in.KeyQuotes); err != nil {
			return nil, persistence("decode insight", err)
		}

		if in.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, persistence("decode insight", err)
		}

		out = append(out, in)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence("iterate insights", err)
	}

	return out, nil
}

// InsightFeedback returns the feedback links of an insight.
func (s *Store) InsightFeedback(ctx context.Context, insightID uuid.UUID) ([]models.InsightFeedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT insight_id, feedback_id, relevance_score, is_key_quote
		FROM insight_feedback
		WHERE insight_id = ?
		ORDER BY is_key_quote DESC, feedback_id ASC`, insightID)
	if err != nil {
		return nil, persistence("load insight feedback", err)
	}
	defer rows.Close()

	var out []models.InsightFeedback

	for rows.Next() {
		var l models.InsightFeedback
		if err := rows.Scan(&l.InsightID, &l.FeedbackID, &l.RelevanceScore, &l.IsKeyQuote); err != nil {
			return nil, persistence("scan insight feedback", err)
		}

		out = append(out, l)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence("iterate insight feedback", err)
	}

	return out, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}

	return t, nil
}

func encodeJSON(v any) (any, error) {
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

func decodeMetadata(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}

	var m map[string]any
	if err := decodeJSON(s.String, &m); err != nil {
		return nil, err
	}

	return m, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}

	return huberrors.NewPersistenceError(op, err)
}
