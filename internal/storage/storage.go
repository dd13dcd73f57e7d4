// Package storage defines the Storage interface that the reference
// backend's handlers depend on. Two implementations exist: sqlite (used by
// cmd/students-api) and memory (used by tests).
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/aanand-mishra/students-client/internal/types"
)

// ErrNotFound is returned when no student has the requested ID.
var ErrNotFound = errors.New("student not found")

// Storage is the database contract.
type Storage interface {
	// CreateStudent inserts a new record and returns it with its
	// generated ID.
	CreateStudent(ctx context.Context, in types.StudentInput) (types.Student, error)

	// GetStudentByID fetches a single student. Returns ErrNotFound
	// (wrapped) if no row matches.
	GetStudentByID(ctx context.Context, id string) (types.Student, error)

	// GetStudents returns every student in insertion order.
	// Returns an empty slice (not nil) if there are none.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// SearchStudents returns the students whose name, email or course
	// contains query, ignoring case. An empty query returns everything.
	SearchStudents(ctx context.Context, query string) ([]types.Student, error)

	// UpdateStudentByID replaces the fields of an existing student and
	// returns the stored record.
	UpdateStudentByID(ctx context.Context, id string, in types.StudentInput) (types.Student, error)

	// DeleteStudentByID removes a student permanently.
	DeleteStudentByID(ctx context.Context, id string) error
}

// Matches is the search predicate shared by every implementation.
func Matches(s types.Student, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.Email), q) ||
		strings.Contains(strings.ToLower(s.Course), q)
}
