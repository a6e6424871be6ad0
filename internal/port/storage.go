package port

import "context"

// Well-known durable storage keys.
const (
	KeyUser           = "user"
	KeyEmailForSignIn = "emailForSignIn"
)

// LocalStorage is a string-keyed durable store owned by one browser client.
// Values are JSON documents; a missing key is reported with ok=false.
type LocalStorage interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// StorageBackend hands out LocalStorage scoped to a client id.
type StorageBackend interface {
	Scope(clientID string) LocalStorage
}
