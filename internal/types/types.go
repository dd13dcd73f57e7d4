// Package types holds the data structures shared by the transport client,
// the synchronization layer, the presentation layer and the reference
// backend. Keeping them in one place prevents import cycles.
package types

// Student is a record as the backend returns it.
//
// ID is assigned by the server. A Student without an ID has not been
// created yet and never appears in a synchronized collection.
type Student struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Course string `json:"course"`
	Age    int    `json:"age"`
}

// Input strips the server-assigned ID, giving the body for a create or
// update request.
func (s Student) Input() StudentInput {
	return StudentInput{
		Name:   s.Name,
		Email:  s.Email,
		Course: s.Course,
		Age:    s.Age,
	}
}

// StudentInput is a record without an ID: the body of POST and PUT.
//
// The validate:"..." tags are read by the go-playground/validator package
// (see internal/validation). They encode the form rules:
//
//	name   at least 2 characters
//	email  valid email syntax
//	course non-empty
//	age    between 16 and 100 inclusive
type StudentInput struct {
	Name   string `json:"name"   validate:"required,min=2"`
	Email  string `json:"email"  validate:"required,email"`
	Course string `json:"course" validate:"required"`
	Age    int    `json:"age"    validate:"gte=16,lte=100"`
}

// WithID attaches a server-assigned ID to the input.
func (in StudentInput) WithID(id string) Student {
	return Student{
		ID:     id,
		Name:   in.Name,
		Email:  in.Email,
		Course: in.Course,
		Age:    in.Age,
	}
}
