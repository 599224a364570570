package engine

import (
	"context"
	"errors"
	"fmt"
)

// Migrate copies every profile from src into dst.
// Profiles already present in dst are overwritten. This works for:
// - File -> SQL (moving off the embedded backend)
// - SQL -> File (local backup)
func Migrate(ctx context.Context, src, dst ProfileStore) (int, error) {
	profiles, err := src.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list profiles: %w", err)
	}

	copied := 0
	for _, p := range profiles {
		err := dst.Create(ctx, p)
		if errors.Is(err, ErrProfileExists) {
			err = dst.Update(ctx, p)
		}
		if err != nil {
			return copied, fmt.Errorf("failed to copy profile %s: %w", p.AccountID, err)
		}
		copied++
	}

	return copied, nil
}
