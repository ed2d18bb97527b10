package store

import (
	"context"
	"errors"

	"github.com/rcliao/docmap/internal/model"
)

// Export returns every document of c.
func Export(ctx context.Context, c Collection) ([]model.Document, error) {
	return c.All(ctx)
}

// Import inserts documents into c, keeping their keys. Documents whose key
// already exists are skipped. Returns the number of inserted documents.
func Import(ctx context.Context, c Collection, docs []model.Document) (int, error) {
	imported := 0
	for _, d := range docs {
		_, err := c.Insert(ctx, d)
		if errors.Is(err, ErrDuplicateKey) {
			continue
		}
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
