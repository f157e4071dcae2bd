package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/iptrack-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures persistence operations needed by the auth service.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
}

// LogStore persists tracking records in an append-only log.
type LogStore interface {
	// AppendLog stores rec and returns it with the generated ID.
	AppendLog(ctx context.Context, rec models.TrackingRecord) (models.TrackingRecord, error)
	// ListLogs returns records newest first, ties broken by descending ID.
	// A limit of zero or less returns every record.
	ListLogs(ctx context.Context, limit int) ([]models.TrackingRecord, error)
}

// Store is the full persistence surface the server wires up.
type Store interface {
	UserStore
	LogStore
	Ping(ctx context.Context) error
	Close()
}
