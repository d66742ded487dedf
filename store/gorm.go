package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ Store = &GormStore{}

// GormStore implements Store on top of any gorm dialector. The postgres
// backend uses it; tests run it on gorm's sqlite driver.
type GormStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to the database named by dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*GormStore, error) {
	return NewGormStore(ctx, postgres.Open(dsn))
}

// NewGormStore opens the dialector and creates the people table when it
// doesn't exist yet.
func NewGormStore(ctx context.Context, dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&Person{}); err != nil {
		closeGorm(db)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &GormStore{db: db}, nil
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Close closes the underlying pool.
func (s *GormStore) Close() error {
	return closeGorm(s.db)
}

// Insert creates one record in its own transaction.
func (s *GormStore) Insert(ctx context.Context, p NewPerson) (Person, error) {
	if err := p.Validate(); err != nil {
		return Person{}, err
	}

	created := Person{Name: p.Name, Age: p.Age, Profession: p.Profession}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&created).Error
	})
	if err != nil {
		return Person{}, fmt.Errorf("failed to insert person: %w", err)
	}
	return created, nil
}

// Query translates the filters into gorm clause expressions.
func (s *GormStore) Query(ctx context.Context, q Query) ([]Person, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&Person{})
	for _, f := range q.Filters {
		expr, err := filterExpression(f)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(expr)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	people := []Person{}
	if err := tx.Order("id").Find(&people).Error; err != nil {
		return nil, fmt.Errorf("failed to query people: %w", err)
	}
	return people, nil
}

func filterExpression(f Filter) (clause.Expression, error) {
	col := clause.Column{Name: string(f.Field)}
	switch f.Op {
	case OpEq:
		return clause.Eq{Column: col, Value: f.Value}, nil
	case OpNe:
		return clause.Neq{Column: col, Value: f.Value}, nil
	case OpLt:
		return clause.Lt{Column: col, Value: f.Value}, nil
	case OpLe:
		return clause.Lte{Column: col, Value: f.Value}, nil
	case OpGt:
		return clause.Gt{Column: col, Value: f.Value}, nil
	case OpGe:
		return clause.Gte{Column: col, Value: f.Value}, nil
	case OpContains:
		return clause.Expr{
			SQL:  `lower(?) LIKE lower(?) ESCAPE '\'`,
			Vars: []any{col, "%" + escapeLike(f.Value.(string)) + "%"},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Op)
}
