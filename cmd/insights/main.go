// Command insights clusters customer feedback into scored themes and synthesizes
// prioritized insights.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		slog.Error("insights failed", "error", err)
		os.Exit(1)
	}
}
