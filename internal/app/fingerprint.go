package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/example/scenegov/internal/ports/secondary"
)

// Fingerprint hashes every record of the store. Equal fingerprints taken
// before and after an operation prove the operation wrote nothing.
func Fingerprint(ctx context.Context, store secondary.Store) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)

	err := store.View(ctx, func(tx secondary.ReadTx) error {
		config, err := tx.ListConfig(ctx, "")
		if err != nil {
			return err
		}
		scenes, err := tx.ListScenes(ctx, "")
		if err != nil {
			return err
		}
		packages, err := tx.ListPackages(ctx, secondary.PackageFilters{})
		if err != nil {
			return err
		}
		logs, err := tx.CountLogs(ctx)
		if err != nil {
			return err
		}
		for _, v := range []any{config, scenes, packages, logs} {
			if err := enc.Encode(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint store: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
