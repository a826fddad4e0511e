package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	propertyapp "rentme-reservations/internal/app/handlers/property"
)

// loadPropertyFixtures seeds the property projection from a JSON array of
// snapshots, the same shape the property consumer receives.
func loadPropertyFixtures(ctx context.Context, bus commands.Bus, path, currency string, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var snapshots []propertyapp.Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	ctx = access.WithPrincipal(ctx, access.System())
	now := time.Now().UTC()
	imported := 0
	for _, snap := range snapshots {
		if _, err := commands.Dispatch[propertyapp.SyncPropertyCommand, dto.Property](ctx, bus, snap.Command(currency, now)); err != nil {
			logger.Error("property fixture rejected", "property_id", snap.PropertyID, "error", err)
			continue
		}
		imported++
	}
	logger.Info("property fixtures imported", "count", imported, "path", path)
	return nil
}
