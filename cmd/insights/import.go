package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/formbricks/insights/internal/models"
)

// importDocument is the JSON layout accepted by the import command.
type importDocument struct {
	Customers []importCustomer `json:"customers" validate:"dive"`
	Feedback  []importFeedback `json:"feedback"  validate:"dive"`
}

type importCustomer struct {
	ID       uuid.UUID      `json:"id"       validate:"required"`
	Name     string         `json:"name"     validate:"required"`
	ACV      float64        `json:"acv"      validate:"gte=0"`
	Segment  models.Segment `json:"segment"  validate:"oneof=ENT MM SMB"`
	Metadata map[string]any `json:"metadata"`
}

type importFeedback struct {
	ID         uuid.UUID      `json:"id"`
	Source     models.Source  `json:"source"      validate:"oneof=slack jira linear upload gdoc zoom"`
	SourceID   string         `json:"source_id"   validate:"required"`
	Text       string         `json:"text"        validate:"required"`
	CreatedAt  time.Time      `json:"created_at"`
	CustomerID *uuid.UUID     `json:"customer_id"`
	Account    *string        `json:"account"`
	Metadata   map[string]any `json:"metadata"`
}

var importValidate = validator.New(validator.WithRequiredStructEnabled())

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load customers and feedback from a JSON file",
	Long: `Import upserts customers by id and feedback by (source, source_id). Feedback whose text
changed loses its embedding so the next run re-embeds it. Use "-" to read standard input.

{
  "customers": [{"id": "...", "name": "Acme", "acv": 50000, "segment": "ENT"}],
  "feedback":  [{"source": "slack", "source_id": "C1/171", "text": "...", "customer_id": "..."}]
}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()

		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			r = f
		}

		customers, feedback, err := decodeImport(r, time.Now().UTC())
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), func(ctx context.Context, app *App) error {
			if err := app.store.UpsertCustomers(ctx, customers); err != nil {
				return err
			}

			if err := app.store.UpsertFeedback(ctx, feedback); err != nil {
				return err
			}

			slog.InfoContext(ctx, "import complete", "customers", len(customers), "feedback", len(feedback))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d customers and %d feedback items\n", len(customers), len(feedback))

			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// decodeImport parses and validates an import document. Missing feedback ids get a UUIDv7 and a
// missing created_at defaults to now.
func decodeImport(r io.Reader, now time.Time) ([]models.Customer, []models.FeedbackItem, error) {
	var doc importDocument

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode import file: %w", err)
	}

	if err := importValidate.Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, nil, fmt.Errorf("invalid import file: %s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}

		return nil, nil, fmt.Errorf("invalid import file: %w", err)
	}

	customers := make([]models.Customer, len(doc.Customers))
	for i, c := range doc.Customers {
		customers[i] = models.Customer{ID: c.ID, Name: c.Name, ACV: c.ACV, Segment: c.Segment, Metadata: c.Metadata}
	}

	feedback := make([]models.FeedbackItem, len(doc.Feedback))
	for i, f := range doc.Feedback {
		id := f.ID
		if id == uuid.Nil {
			id = uuid.Must(uuid.NewV7())
		}

		createdAt := f.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}

		feedback[i] = models.FeedbackItem{
			ID:         id,
			Source:     f.Source,
			SourceID:   f.SourceID,
			Text:       f.Text,
			CreatedAt:  createdAt,
			CustomerID: f.CustomerID,
			Account:    f.Account,
			Metadata:   f.Metadata,
		}
	}

	return customers, feedback, nil
}
