package repository

import (
	"context"
	"fmt"

	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// querier is satisfied by both DB and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var snapshotTx = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// Store reads pipeline input and replaces derived state.
type Store struct {
	db DB
}

// NewStore creates a Store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// LoadSnapshot reads every customer and every embedded feedback item from one consistent
// snapshot. Items without an embedding are returned separately when includeUnembedded is set.
func (s *Store) LoadSnapshot(ctx context.Context, includeUnembedded bool) (models.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, snapshotTx)
	if err != nil {
		return models.Snapshot{}, persistence("begin snapshot", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	customers, err := loadCustomers(ctx, tx)
	if err != nil {
		return models.Snapshot{}, err
	}

	query := `
		SELECT id, source, source_id, text, embedding, customer_id, account, metadata, created_at
		FROM feedback`
	if !includeUnembedded {
		query += `
		WHERE embedding IS NOT NULL`
	}

	query += `
		ORDER BY created_at ASC, id ASC`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return models.Snapshot{}, persistence("load feedback", err)
	}
	defer rows.Close()

	snap := models.Snapshot{Customers: customers}

	for rows.Next() {
		var (
			item models.FeedbackItem
			vec  *pgvector.Vector
		)

		if err := rows.Scan(
			&item.ID, &item.Source, &item.SourceID, &item.Text, &vec,
			&item.CustomerID, &item.Account, &item.Metadata, &item.CreatedAt,
		); err != nil {
			return models.Snapshot{}, persistence("scan feedback", err)
		}

		if vec == nil {
			snap.Unembedded = append(snap.Unembedded, item)
			continue
		}

		item.Embedding = vec.Slice()
		snap.Feedback = append(snap.Feedback, item)
	}

	if err := rows.Err(); err != nil {
		return models.Snapshot{}, persistence("iterate feedback", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Snapshot{}, persistence("commit snapshot", err)
	}

	return snap, nil
}

func loadCustomers(ctx context.Context, q querier) (map[uuid.UUID]models.Customer, error) {
	rows, err := q.Query(ctx, `
		SELECT id, name, acv, segment, metadata
		FROM customers
		ORDER BY id ASC`)
	if err != nil {
		return nil, persistence("load customers", err)
	}
	defer rows.Close()

	customers := make(map[uuid.UUID]models.Customer)

	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.ACV, &c.Segment, &c.Metadata); err != nil {
			return nil, persistence("scan customer", err)
		}

		customers[c.ID] = c
	}

	if err := rows.Err(); err != nil {
		return nil, persistence("iterate customers", err)
	}

	return customers, nil
}

// SaveEmbeddings writes embeddings back to their feedback rows in one round trip.
func (s *Store) SaveEmbeddings(ctx context.Context, ids []uuid.UUID, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("save embeddings: %d ids for %d vectors", len(ids), len(vectors))
	}

	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(`UPDATE feedback SET embedding = $2 WHERE id = $1`, id, pgvector.NewVector(vectors[i]))
	}

	return s.sendBatch(ctx, "save embeddings", batch)
}

// ReplaceDerived atomically swaps all themes, memberships, metrics and customer-feedback
// insights for the given state. Competitive insights without a theme survive.
func (s *Store) ReplaceDerived(ctx context.Context, state models.DerivedState) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistence("begin replace", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM insights WHERE category = $1`, models.CategoryCustomerFeedback); err != nil {
		return persistence("delete insights", err)
	}

	// Cascades to feedback_themes, theme_metrics and any remaining theme-bound insight.
	if _, err = tx.Exec(ctx, `DELETE FROM themes`); err != nil {
		return persistence("delete themes", err)
	}

	for _, t := range state.Themes {
		if err = insertTheme(ctx, tx, t); err != nil {
			return err
		}
	}

	if err = copyFeedbackThemes(ctx, tx, state.FeedbackThemes); err != nil {
		return err
	}

	for _, m := range state.Metrics {
		if err = upsertMetrics(ctx, tx, m); err != nil {
			return err
		}
	}

	for _, in := range state.Insights {
		if err = insertInsight(ctx, tx, in); err != nil {
			return err
		}
	}

	if err = copyInsightFeedback(ctx, tx, state.InsightFeedback); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return persistence("commit replace", err)
	}

	return nil
}

func insertTheme(ctx context.Context, q querier, t models.Theme) error {
	var centroid *pgvector.Vector
	if len(t.Centroid) > 0 {
		v := pgvector.NewVector(t.Centroid)
		centroid = &v
	}

	_, err := q.Exec(ctx, `
		INSERT INTO themes (id, label, description, centroid, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Label, t.Description, centroid, t.Version, t.CreatedAt, t.UpdatedAt,
	)

	return persistence("insert theme", err)
}

func copyFeedbackThemes(ctx context.Context, tx pgx.Tx, links []models.FeedbackTheme) error {
	if len(links) == 0 {
		return nil
	}

	rows := make([][]any, len(links))
	for i, l := range links {
		rows[i] = []any{l.FeedbackID, l.ThemeID, l.Confidence}
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"feedback_themes"},
		[]string{"feedback_id", "theme_id", "confidence"},
		pgx.CopyFromRows(rows),
	)

	return persistence("copy feedback themes", err)
}

func upsertMetrics(ctx context.Context, q querier, m models.ThemeMetrics) error {
	_, err := q.Exec(ctx, `
		INSERT INTO theme_metrics (theme_id, freq_30d, freq_90d, acv_sum, sentiment, trend, dup_penalty, score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (theme_id) DO UPDATE SET
			freq_30d = EXCLUDED.freq_30d,
			freq_90d = EXCLUDED.freq_90d,
			acv_sum = EXCLUDED.acv_sum,
			sentiment = EXCLUDED.sentiment,
			trend = EXCLUDED.trend,
			dup_penalty = EXCLUDED.dup_penalty,
			score = EXCLUDED.score,
			updated_at = EXCLUDED.updated_at`,
		m.ThemeID, m.Freq30d, m.Freq90d, m.ACVSum, m.Sentiment, m.Trend, m.DupPenalty, m.Score, m.UpdatedAt,
	)

	return persistence("upsert theme metrics", err)
}

func insertInsight(ctx context.Context, q querier, in models.Insight) error {
	_, err := q.Exec(ctx, `
		INSERT INTO insights (
			id, theme_id, category, title, description, impact, recommendation, severity, effort,
			priority_score, supporting_feedback_ids, affected_customers, key_quotes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		in.ID, in.ThemeID, in.Category, in.Title, in.Description, in.Impact, in.Recommendation,
		in.Severity, in.Effort, in.PriorityScore,
		nonNil(in.SupportingFeedbackIDs), nonNil(in.AffectedCustomers), nonNil(in.KeyQuotes), in.CreatedAt,
	)

	return persistence("insert insight", err)
}

func copyInsightFeedback(ctx context.Context, tx pgx.Tx, links []models.InsightFeedback) error {
	if len(links) == 0 {
		return nil
	}

	rows := make([][]any, len(links))
	for i, l := range links {
		rows[i] = []any{l.InsightID, l.FeedbackID, int32(l.RelevanceScore), int16(l.IsKeyQuote)}
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"insight_feedback"},
		[]string{"insight_id", "feedback_id", "relevance_score", "is_key_quote"},
		pgx.CopyFromRows(rows),
	)

	return persistence("copy insight feedback", err)
}

// nonNil keeps JSONB snapshot columns as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}

// LoadThemeMembership reads the current themes with their member feedback and all customers.
func (s *Store) LoadThemeMembership(ctx context.Context) (models.ThemeMembership, error) {
	tx, err := s.db.BeginTx(ctx, snapshotTx)
	if err != nil {
		return models.ThemeMembership{}, persistence("begin membership", err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	customers, err := loadCustomers(ctx, tx)
	if err != nil {
		return models.ThemeMembership{}, err
	}

	themes, err := loadThemes(ctx, tx)
	if err != nil {
		return models.ThemeMembership{}, err
	}

	rows, err := tx.Query(ctx, `
		SELECT ft.theme_id, f.id, f.source, f.source_id, f.text, f.customer_id, f.account, f.created_at
		FROM feedback_themes ft
		JOIN feedback f ON f.id = ft.feedback_id
		ORDER BY ft.theme_id ASC, f.created_at ASC, f.id ASC`)
	if err != nil {
		return models.ThemeMembership{}, persistence("load theme members", err)
	}
	defer rows.Close()

	members := make(map[uuid.UUID][]models.FeedbackItem, len(themes))

	for rows.Next() {
		var (
			themeID uuid.UUID
			item    models.FeedbackItem
		)

		if err := rows.Scan(
			&themeID, &item.ID, &item.Source, &item.SourceID, &item.Text,
			&item.CustomerID, &item.Account, &item.CreatedAt,
		); err != nil {
			return models.ThemeMembership{}, persistence("scan theme member", err)
		}

		members[themeID] = append(members[themeID], item)
	}

	if err := rows.Err(); err != nil {
		return models.ThemeMembership{}, persistence("iterate theme members", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ThemeMembership{}, persistence("commit membership", err)
	}

	return models.ThemeMembership{Themes: themes, Members: members, Customers: customers}, nil
}

func loadThemes(ctx context.Context, q querier) ([]models.Theme, error) {
	rows, err := q.Query(ctx, `
		SELECT id, label, description, centroid, version, created_at, updated_at
		FROM themes
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, persistence("load themes", err)
	}
	defer rows.Close()

	var themes []models.Theme

	for rows.Next() {
		var (
			t        models.Theme
			centroid *pgvector.Vector
		)

		if err := rows.Scan(&t.ID, &t.Label, &t.Description, &centroid, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, persistence("scan theme", err)
		}

		if centroid != nil {
			t.Centroid = centroid.Slice()
		}

		themes = append(themes, t)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence("iterate themes", err)
	}

	return themes, nil
}

// ReplaceMetrics upserts the metrics of existing themes in one transaction.
func (s *Store) ReplaceMetrics(ctx context.Context, metrics []models.ThemeMetrics) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return persistence("begin metrics", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, m := range metrics {
		if err = upsertMetrics(ctx, tx, m); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return persistence("commit metrics", err)
	}

	return nil
}
