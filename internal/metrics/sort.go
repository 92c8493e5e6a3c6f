package metrics

import (
	"sort"

	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
)

func sortedCustomers(m map[uuid.UUID]models.Customer) []models.Customer {
	out := make([]models.Customer, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})

	return out
}
