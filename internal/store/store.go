// Package store persists completed farmer registrations.
package store

import (
	"context"
	"errors"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

// ErrFarmerNotFound is returned when no record has the requested id.
var ErrFarmerNotFound = errors.New("farmer not found")

// FarmerRepository defines how farmer records are stored.
type FarmerRepository interface {
	// SaveFarmerRecord writes a record and returns its id. Saving again for
	// the same session instance returns the id of the record already stored;
	// a new conversation on a reused session id gets a record of its own.
	// Failures wrap registration.ErrPersistenceUnavailable.
	SaveFarmerRecord(ctx context.Context, record registration.FarmerRecord) (string, error)

	// GetFarmer retrieves a record by id.
	GetFarmer(ctx context.Context, id string) (registration.FarmerRecord, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
