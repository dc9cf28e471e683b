// Package collab declares the external collaborators the changelog core
// consumes but does not own: the repo's changeset-parent fetcher and its
// bookmark store. Callers supply concrete implementations; the core only
// ever sees these interfaces.
package collab

import (
	"context"

	"github.com/iamNilotpal/segchangelog/pkg/vertex"
)

// ChangesetFetcher resolves a commit's parents. It must be total on
// assigned vertexes and may perform network I/O.
type ChangesetFetcher interface {
	GetParents(ctx context.Context, v vertex.Vertex) ([]vertex.Vertex, error)
}

// Bookmarks resolves a named bookmark (typically "master") to the vertex it
// currently points at.
type Bookmarks interface {
	Get(ctx context.Context, name string) (vertex.Vertex, bool, error)
}
