// Package store keeps the people records behind a small storage-service
// abstraction. One Store owns one managed connection pool for its lifetime.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidPerson = errors.New("invalid person")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrClosed        = errors.New("store is closed")
)

// Person is a single row of the people table.
type Person struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string `json:"name" gorm:"not null"`
	Age        int    `json:"age" gorm:"not null"`
	Profession string `json:"profession" gorm:"not null"`
}

// TableName pins the gorm table to the same name the SQLite schema uses.
func (Person) TableName() string {
	return "people"
}

// Tuple returns the record in column order (id, name, age, profession).
func (p Person) Tuple() []any {
	return []any{p.ID, p.Name, p.Age, p.Profession}
}

// NewPerson holds the caller-supplied fields of a record about to be inserted.
type NewPerson struct {
	Name       string
	Age        int
	Profession string
}

// Validate checks the record before any storage access happens.
func (n NewPerson) Validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidPerson)
	}
	if strings.TrimSpace(n.Profession) == "" {
		return fmt.Errorf("%w: profession must not be empty", ErrInvalidPerson)
	}
	if n.Age < 0 {
		return fmt.Errorf("%w: age must not be negative", ErrInvalidPerson)
	}
	return nil
}

// Store is implemented by every backend.
type Store interface {
	// Insert appends exactly one record or nothing.
	Insert(ctx context.Context, p NewPerson) (Person, error)
	// Query returns the records matching every filter, in id order.
	Query(ctx context.Context, q Query) ([]Person, error)
	Close() error
}

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the backend named by cfg.Backend. An empty backend means sqlite.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "demo.db"
		}
		return NewSQLiteStore(ctx, path)
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
