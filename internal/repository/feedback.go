package repository

import (
	"context"

	"github.com/formbricks/insights/internal/models"
	"github.com/jackc/pgx/v5"
)

// UpsertCustomers inserts customers or updates them by id.
func (s *Store) UpsertCustomers(ctx context.Context, customers []models.Customer) error {
	if len(customers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(`
			INSERT INTO customers (id, name, acv, segment, metadata)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				acv = EXCLUDED.acv,
				segment = EXCLUDED.segment,
				metadata = EXCLUDED.metadata,
				updated_at = NOW()`,
			c.ID, c.Name, c.ACV, c.Segment, c.Metadata,
		)
	}

	return s.sendBatch(ctx, "upsert customers", batch)
}

// UpsertFeedback inserts feedback or updates it by (source, source_id).
// Changing the text of an existing item clears its embedding.
func (s *Store) UpsertFeedback(ctx context.Context, items []models.FeedbackItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range items {
		batch.Queue(`
			INSERT INTO feedback (id, source, source_id, text, customer_id, account, metadata, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (source, source_id) DO UPDATE SET
				text = EXCLUDED.text,
				customer_id = EXCLUDED.customer_id,
				account = EXCLUDED.account,
				metadata = EXCLUDED.metadata,
				embedding = CASE WHEN feedback.text = EXCLUDED.text THEN feedback.embedding END`,
			f.ID, f.Source, f.SourceID, f.Text, f.CustomerID, f.Account, f.Metadata, f.CreatedAt,
		)
	}

	return s.sendBatch(ctx, "upsert feedback", batch)
}

func (s *Store) sendBatch(ctx context.Context, op string, batch *pgx.Batch) error {
	br := s.db.SendBatch(ctx, batch)

	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()

			return persistence(op, err)
		}
	}

	return persistence(op, br.Close())
}
