package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

var _ Store = &SQLiteStore{}

// SQLiteStore implements Store on a single embedded database file.
// The pool is limited to one open connection; every operation acquires it
// for its own duration and releases it before returning.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database file at dbPath and makes
// sure the people table exists.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initDB(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

// initDB creates the people table if it doesn't exist.
func (s *SQLiteStore) initDB(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS people (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		profession TEXT NOT NULL
	);`

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withConn runs fn on a connection acquired from the pool and released
// when fn returns.
func (s *SQLiteStore) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
			return ErrClosed
		}
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

// Insert stores one record inside a transaction and returns it with its
// generated id.
func (s *SQLiteStore) Insert(ctx context.Context, p NewPerson) (Person, error) {
	if err := p.Validate(); err != nil {
		return Person{}, err
	}

	var created Person
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx,
			"INSERT INTO people (name, age, profession) VALUES (?, ?, ?)",
			p.Name, p.Age, p.Profession,
		)
		if err != nil {
			return fmt.Errorf("failed to insert person: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read generated id: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit insert: %w", err)
		}

		created = Person{ID: id, Name: p.Name, Age: p.Age, Profession: p.Profession}
		return nil
	})
	return created, err
}

// Query returns the records matching q. Column names come from the
// allow-list; values are bound as parameters.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Person, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	query, args := buildSelect(q)

	people := []Person{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query people: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var p Person
			if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Profession); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}
			people = append(people, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return people, nil
}

// buildSelect expects a validated query.
func buildSelect(q Query) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT id, name, age, profession FROM people")

	args := make([]any, 0, len(q.Filters)+1)
	for i, f := range q.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if f.Op == OpContains {
			fmt.Fprintf(&b, `lower(%s) LIKE lower(?) ESCAPE '\'`, f.Field)
			args = append(args, "%"+escapeLike(f.Value.(string))+"%")
			continue
		}
		fmt.Fprintf(&b, "%s %s ?", f.Field, sqlOperators[f.Op])
		args = append(args, f.Value)
	}

	b.WriteString(" ORDER BY id")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}
