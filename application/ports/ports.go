package ports

import (
	"context"
	"time"

	"bit-backend/domain/clientlog"
)

// SsoPageProvider supplies the HTML template of the single sign-on login page.
// The template contains a {model} placeholder for the login view model.
type SsoPageProvider interface {
	GetSsoPage(ctx context.Context) (string, error)
}

// ClientLogStore defines the interface for client log persistence
// This is a port in hexagonal architecture - the service doesn't know about the implementation
type ClientLogStore interface {
	// Save persists a batch of records
	Save(ctx context.Context, records []*clientlog.Record) error

	// ListSince returns the newest records received at or after since, newest
	// first, up to limit
	ListSince(ctx context.Context, since time.Time, limit int) ([]*clientlog.Record, error)
}
