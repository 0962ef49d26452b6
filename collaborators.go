//go:generate go run go.uber.org/mock/mockgen -source=collaborators.go -destination=mock_collaborators_test.go -package=main
package main

import "context"

// IdentityService authenticates users and persists per-user changes.
type IdentityService interface {
	Login(ctx context.Context, username, password string) (*User, error)
	Create(ctx context.Context, username, password, name string) (*User, error)
	// GetLoggedInUser returns nil without error when token or username is empty.
	GetLoggedInUser(ctx context.Context, token, username string) (*User, error)
	AddFavorite(ctx context.Context, user *User, storyID string) error
	RemoveFavorite(ctx context.Context, user *User, storyID string) error
	DeleteStory(ctx context.Context, user *User, storyID string) error
}

// StoryCatalog lists and creates stories.
type StoryCatalog interface {
	GetStories(ctx context.Context) ([]Story, error)
	AddStory(ctx context.Context, user *User, story NewStory) (Story, error)
}

// LocalStorage is a per-client string key-value store that outlives a page.
// Missing keys read as "".
type LocalStorage interface {
	GetItem(ctx context.Context, clientID, key string) (string, error)
	SetItem(ctx context.Context, clientID, key, value string) error
	Clear(ctx context.Context, clientID string) error
}
