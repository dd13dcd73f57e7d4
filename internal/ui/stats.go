// Package ui is the presentation layer: the list, form, modal and app shell
// that consume the synchronization layer. It keeps only local state (search
// text, which record the modal is editing, form errors); everything shown
// about students comes from the query cache.
package ui

import (
	"math"
	"strings"

	"github.com/aanand-mishra/students-client/internal/types"
)

// Filter keeps the students whose name, email or course contains term,
// ignoring case. An empty term keeps everything.
func Filter(students []types.Student, term string) []types.Student {
	if term == "" {
		return students
	}

	term = strings.ToLower(term)
	out := make([]types.Student, 0, len(students))
	for _, s := range students {
		if strings.Contains(strings.ToLower(s.Name), term) ||
			strings.Contains(strings.ToLower(s.Email), term) ||
			strings.Contains(strings.ToLower(s.Course), term) {
			out = append(out, s)
		}
	}
	return out
}

// Stats are the summary cards above the list.
type Stats struct {
	Total   int
	Courses int
	AvgAge  int
	Active  int
}

// ComputeStats summarises students. AvgAge is rounded half away from zero
// and is 0 for an empty list. Every record counts as active.
func ComputeStats(students []types.Student) Stats {
	st := Stats{Total: len(students), Active: len(students)}
	if len(students) == 0 {
		return st
	}

	courses := make(map[string]struct{}, len(students))
	sum := 0
	for _, s := range students {
		courses[s.Course] = struct{}{}
		sum += s.Age
	}

	st.Courses = len(courses)
	st.AvgAge = int(math.Round(float64(sum) / float64(len(students))))

	return st
}
