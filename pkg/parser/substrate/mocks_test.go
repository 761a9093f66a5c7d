package substrate

import (
	"context"

	"github.com/chainsafe/sygma-indexer/pkg/db"
)

// MockResourceStore is a mock resource lookup backed by a static map
type MockResourceStore struct {
	GetResourceFunc func(ctx context.Context, id string) (*db.Resource, error)
}

func (m *MockResourceStore) GetResource(ctx context.Context, id string) (*db.Resource, error) {
	if m.GetResourceFunc != nil {
		return m.GetResourceFunc(ctx, id)
	}
	return nil, nil
}
