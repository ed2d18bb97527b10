package store

import "context"

// Summary holds store-wide statistics.
type Summary struct {
	Backend        string            `json:"backend"`
	Location       string            `json:"location,omitempty"`
	SizeBytes      int64             `json:"size_bytes,omitempty"`
	TotalDocuments int               `json:"total_documents"`
	Collections    []CollectionStats `json:"collections"`
}

type sizer interface {
	SizeBytes() int64
}

type locator interface {
	Path() string
}

// Summarize collects statistics for s.
func Summarize(ctx context.Context, backend string, s Store) (*Summary, error) {
	sum := &Summary{Backend: backend}
	if l, ok := s.(locator); ok {
		sum.Location = l.Path()
	}
	if sz, ok := s.(sizer); ok {
		sum.SizeBytes = sz.SizeBytes()
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return sum, err
	}
	sum.Collections = stats
	for _, cs := range stats {
		sum.TotalDocuments += cs.Count
	}
	return sum, nil
}
