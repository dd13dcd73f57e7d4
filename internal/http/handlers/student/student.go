// Package student contains the HTTP handlers of the reference backend.
//
// Each handler is a factory: it receives its dependencies once at startup
// and returns the func(http.ResponseWriter, *http.Request) the router
// calls on every request.
//
//	router.HandleFunc("POST /api/students", student.New(storage))
package student

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/students-client/internal/storage"
	"github.com/aanand-mishra/students-client/internal/types"
	"github.com/aanand-mishra/students-client/internal/utils/response"
	"github.com/aanand-mishra/students-client/internal/validation"
)

// Register mounts every route of the students API on router.
//
//	POST   /api/students             → create a new student
//	GET    /api/students             → list all students
//	GET    /api/students/search?q=   → search by name, email or course
//	GET    /api/students/{id}        → get one student by ID
//	PUT    /api/students/{id}        → update a student
//	DELETE /api/students/{id}        → delete a student
func Register(router *http.ServeMux, storage storage.Storage) {
	router.HandleFunc("POST /api/students", New(storage))
	router.HandleFunc("GET /api/students", GetList(storage))
	router.HandleFunc("GET /api/students/search", Search(storage))
	router.HandleFunc("GET /api/students/{id}", GetByID(storage))
	router.HandleFunc("PUT /api/students/{id}", Update(storage))
	router.HandleFunc("DELETE /api/students/{id}", Delete(storage))
}

// New handles POST /api/students
//
// Request body (JSON):
//
//	{ "name": "Ann Lee", "email": "ann@x.com", "course": "Math", "age": 20 }
//
// Success response (201 Created): the stored record, with its new id.
//
// Error responses:
//
//	400 Bad Request   empty body, malformed JSON, or failed validation
//	500 Internal      database error
func New(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		in, ok := decodeInput(w, r)
		if !ok {
			return
		}

		created, err := storage.CreateStudent(r.Context(), in)
		if err != nil {
			slog.Error("error creating student", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		slog.Info("student created", slog.String("id", created.ID))
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// GetByID handles GET /api/students/{id}.
// 404 when no student has that id.
func GetByID(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("getting a student", slog.String("id", id))

		student, err := storage.GetStudentByID(r.Context(), id)
		if err != nil {
			writeStorageError(w, "error getting student", id, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, student)
	}
}

// GetList handles GET /api/students.
// Returns an empty array [] (not null) when there are no students.
func GetList(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all students")

		students, err := storage.GetStudents(r.Context())
		if err != nil {
			slog.Error("error getting students", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, students)
	}
}

// Search handles GET /api/students/search?q=<query>.
// An empty or missing q returns every student.
func Search(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		slog.Info("searching students", slog.String("q", q))

		students, err := storage.SearchStudents(r.Context(), q)
		if err != nil {
			slog.Error("error searching students", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, students)
	}
}

// Update handles PUT /api/students/{id}
// Replaces ALL fields of an existing student; the body is validated with
// the same rules as creation.
//
// Success response (200 OK): the updated record.
//
// Error responses:
//
//	400 Bad Request   empty body, malformed JSON, or failed validation
//	404 Not Found     no student with that id
//	500 Internal      database error
func Update(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("updating a student", slog.String("id", id))

		in, ok := decodeInput(w, r)
		if !ok {
			return
		}

		updated, err := storage.UpdateStudentByID(r.Context(), id, in)
		if err != nil {
			writeStorageError(w, "error updating student", id, err)
			return
		}

		slog.Info("student updated", slog.String("id", id))
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// Delete handles DELETE /api/students/{id}.
// Success is 204 No Content; 404 when no student has that id.
func Delete(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		slog.Info("deleting a student", slog.String("id", id))

		if err := storage.DeleteStudentByID(r.Context(), id); err != nil {
			writeStorageError(w, "error deleting student", id, err)
			return
		}

		slog.Info("student deleted", slog.String("id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeInput reads and validates a StudentInput body. On failure it has
// already written the 400 response and returns false.
func decodeInput(w http.ResponseWriter, r *http.Request) (types.StudentInput, bool) {
	var in types.StudentInput

	err := json.NewDecoder(r.Body).Decode(&in)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("request body is empty")))
		return in, false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return in, false
	}

	if err := validation.Validate(in); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(verr))
		} else {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		}
		return in, false
	}

	return in, true
}

func writeStorageError(w http.ResponseWriter, msg, id string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, storage.ErrNotFound) {
		status = http.StatusNotFound
	}

	slog.Error(msg,
		slog.String("id", id),
		slog.String("error", err.Error()))
	response.WriteJSON(w, status, response.GeneralError(err))
}
