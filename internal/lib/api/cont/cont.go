package cont

import (
	"context"

	"moiport/entity"
)

type contextKey string

const viewerKey contextKey = "viewer"

// PutViewer stores the authenticated viewer on the request context.
func PutViewer(ctx context.Context, viewer *entity.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, viewer)
}

// GetViewer returns the authenticated viewer, or nil when the request was not
// authenticated.
func GetViewer(ctx context.Context) *entity.Viewer {
	viewer, ok := ctx.Value(viewerKey).(*entity.Viewer)
	if !ok {
		return nil
	}
	return viewer
}
