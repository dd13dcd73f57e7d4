// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aanand-mishra/students-client/internal/storage"
	"github.com/aanand-mishra/students-client/internal/types"
	"github.com/google/uuid"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at path, creates the students table if it
// does not already exist, and returns a ready-to-use *SQLite.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// Every connection to ":memory:" is a separate database; a single
	// connection keeps them one. SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	// Schema:
	//   id      UUID assigned on insert (TEXT)
	//   name    student's full name
	//   email   student's email address
	//   course  course the student is enrolled in
	//   age     student's age in years
	//
	// rowid (implicit) keeps insertion order for listing.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id     TEXT    PRIMARY KEY,
			name   TEXT    NOT NULL,
			email  TEXT    NOT NULL,
			course TEXT    NOT NULL,
			age    INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	return s.Db.Close()
}

// CreateStudent inserts a new row. Values are bound through placeholders,
// never concatenated into the SQL.
func (s *SQLite) CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students (id, name, email, course, age) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	id := uuid.New().String()

	if _, err := stmt.ExecContext(ctx, id, in.Name, in.Email, in.Course, in.Age); err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: exec: %w", err)
	}

	return in.WithID(id), nil
}

// GetStudentByID fetches exactly one row matched by primary key.
// QueryRow surfaces "no match" only at Scan time, as sql.ErrNoRows.
func (s *SQLite) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, name, email, course, age FROM students WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	var student types.Student

	err = stmt.QueryRowContext(ctx, id).Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&student.Course,
		&student.Age,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("no student found with id: %s: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

// GetStudents returns all rows in insertion order.
func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	return s.query(ctx, "GetStudents",
		"SELECT id, name, email, course, age FROM students ORDER BY rowid",
	)
}

// SearchStudents matches query against name, email and course.
//
// instr() rather than LIKE, so "%" and "_" in the query are literal.
// lower() folds ASCII only, as does SQLite's built-in NOCASE.
func (s *SQLite) SearchStudents(ctx context.Context, query string) ([]types.Student, error) {
	return s.query(ctx, "SearchStudents", `
		SELECT id, name, email, course, age FROM students
		WHERE instr(lower(name), lower(?1)) > 0
		   OR instr(lower(email), lower(?1)) > 0
		   OR instr(lower(course), lower(?1)) > 0
		ORDER BY rowid`,
		query,
	)
}

func (s *SQLite) query(ctx context.Context, op, q string, args ...any) ([]types.Student, error) {
	rows, err := s.Db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	// Returning [] instead of null in JSON is better API behaviour.
	students := make([]types.Student, 0)

	for rows.Next() {
		var student types.Student

		if err := rows.Scan(
			&student.ID,
			&student.Name,
			&student.Email,
			&student.Course,
			&student.Age,
		); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}

		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration: %w", op, err)
	}

	return students, nil
}

// UpdateStudentByID replaces a student's data and re-reads the row so the
// caller gets exactly what is stored.
func (s *SQLite) UpdateStudentByID(ctx context.Context, id string, in types.StudentInput) (types.Student, error) {
	res, err := s.Db.ExecContext(ctx,
		"UPDATE students SET name = ?, email = ?, course = ?, age = ? WHERE id = ?",
		in.Name, in.Email, in.Course, in.Age, id,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: rows affected: %w", err)
	}
	if n == 0 {
		return types.Student{}, fmt.Errorf("no student found with id: %s: %w", id, storage.ErrNotFound)
	}

	return s.GetStudentByID(ctx, id)
}

// DeleteStudentByID removes a row by primary key.
func (s *SQLite) DeleteStudentByID(ctx context.Context, id string) error {
	res, err := s.Db.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no student found with id: %s: %w", id, storage.ErrNotFound)
	}

	return nil
}
