package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"chat_server/models"
	"chat_server/stores"
)

// UserService is the read surface over the identity directory.
type UserService struct {
	Users stores.UserDirectory
}

// ListUsers returns every user except viewerID, sorted by name.
func (s *UserService) ListUsers(ctx context.Context, viewerID string) ([]models.PublicUser, error) {
	users, err := s.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		if u.UserID == viewerID {
			continue
		}
		out = append(out, u.Public())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FullName == out[j].FullName {
			return out[i].ID < out[j].ID
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

// GetUser returns the public profile of userID.
func (s *UserService) GetUser(ctx context.Context, userID string) (models.PublicUser, error) {
	u, err := s.Users.Get(ctx, userID)
	if errors.Is(err, stores.ErrNotFound) {
		return models.PublicUser{}, newError(ErrNotFound, "User not found")
	}
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("get user: %w", err)
	}
	return u.Public(), nil
}
