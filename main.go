package main

import (
	"log/slog"
	"os"

	"ticket-checkout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		slog.Error("ticket-checkout failed", "error", err)
		os.Exit(1)
	}
}
