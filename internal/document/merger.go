package document

import (
	"context"
	"fmt"

	"github.com/localnerve/minisitedb/internal/types"
)

// Source loads the stored document of a content record.
type Source interface {
	Document(ctx context.Context, contentID string) (*Document, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, contentID string) (*Document, error)

func (f SourceFunc) Document(ctx context.Context, contentID string) (*Document, error) {
	return f(ctx, contentID)
}

// Merger merges submissions over a document looked up by content id when the
// caller does not supply one.
type Merger struct {
	Source Source
}

// MergeFor merges fields over existing, or over the document stored for
// contentID when existing is nil. A record that does not exist yet merges
// over the skeleton. Store failures are returned; field problems never are.
func (m *Merger) MergeFor(ctx context.Context, contentID string, existing *Document, fields Fields) (Document, error) {
	if existing == nil && contentID != "" && m.Source != nil {
		doc, err := m.Source.Document(ctx, contentID)
		if err != nil && !types.IsNotFound(err) {
			return Document{}, fmt.Errorf("failed to load document for %s: %w", contentID, err)
		}
		existing = doc
	}
	return Merge(existing, fields), nil
}
