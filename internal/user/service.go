// Package user is the boundary to the externally-owned user records.
// The coordinator only ever resolves users by id.
package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/peercode-live/peercode-go-collab-server/internal/database"
)

type Service interface {
	// GetUserByID returns (nil, nil) for an unknown user.
	GetUserByID(ctx context.Context, id string) (*database.User, error)
}

type StoreService struct {
	store database.UserStore
}

func NewStoreService(store database.UserStore) *StoreService {
	return &StoreService{store: store}
}

func (s *StoreService) GetUserByID(ctx context.Context, id string) (*database.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fail to load user: %w", err)
	}
	return user, nil
}
