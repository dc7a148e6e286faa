package opstore

import (
	"context"

	"detcover/pkg/models"
)

// Filter narrows a Locate call. A zero filter matches every operation.
type Filter struct {
	ID string
}

// Store locates recorded operations. The engine issues exactly one Locate
// per analysis and never mutates the returned operations.
type Store interface {
	Locate(ctx context.Context, f Filter) ([]*models.Operation, error)
}
