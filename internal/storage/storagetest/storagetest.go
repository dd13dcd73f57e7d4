// Package storagetest is a conformance suite run against every
// storage.Storage implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/aanand-mishra/students-client/internal/storage"
	"github.com/aanand-mishra/students-client/internal/types"
	. "github.com/onsi/gomega"
)

// Run exercises store. newStore must return an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	ctx := context.Background()

	ann := types.StudentInput{Name: "Ann Lee", Email: "ann@x.com", Course: "Math", Age: 20}
	bo := types.StudentInput{Name: "Bo Chen", Email: "bo@school.org", Course: "Art History", Age: 22}
	cy := types.StudentInput{Name: "Cy Park", Email: "cy@x.com", Course: "Mathematics", Age: 30}

	t.Run("create assigns id and lists in order", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		empty, err := s.GetStudents(ctx)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(empty).NotTo(BeNil())
		g.Expect(empty).To(BeEmpty())

		a, err := s.CreateStudent(ctx, ann)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(a.ID).NotTo(BeEmpty())
		g.Expect(a.Input()).To(Equal(ann))

		b, err := s.CreateStudent(ctx, bo)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(b.ID).NotTo(Equal(a.ID))

		all, err := s.GetStudents(ctx)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(all).To(Equal([]types.Student{a, b}))
	})

	t.Run("get by id", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		a, err := s.CreateStudent(ctx, ann)
		g.Expect(err).NotTo(HaveOccurred())

		got, err := s.GetStudentByID(ctx, a.ID)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(got).To(Equal(a))

		_, err = s.GetStudentByID(ctx, "missing")
		g.Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())
	})

	t.Run("search matches name email or course ignoring case", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		for _, in := range []types.StudentInput{ann, bo, cy} {
			_, err := s.CreateStudent(ctx, in)
			g.Expect(err).NotTo(HaveOccurred())
		}

		names := func(q string) []string {
			res, err := s.SearchStudents(ctx, q)
			g.Expect(err).NotTo(HaveOccurred())
			out := make([]string, 0, len(res))
			for _, r := range res {
				out = append(out, r.Name)
			}
			return out
		}

		g.Expect(names("MATH")).To(Equal([]string{"Ann Lee", "Cy Park"}))
		g.Expect(names("school.org")).To(Equal([]string{"Bo Chen"}))
		g.Expect(names("chen")).To(Equal([]string{"Bo Chen"}))
		g.Expect(names("")).To(HaveLen(3))
		g.Expect(names("nobody")).To(BeEmpty())
		g.Expect(names("%")).To(BeEmpty())
	})

	t.Run("update replaces fields and is idempotent", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		a, err := s.CreateStudent(ctx, ann)
		g.Expect(err).NotTo(HaveOccurred())

		changed := ann
		changed.Course = "Physics"
		changed.Age = 21

		for range 2 {
			got, err := s.UpdateStudentByID(ctx, a.ID, changed)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(got).To(Equal(changed.WithID(a.ID)))
		}

		got, err := s.GetStudentByID(ctx, a.ID)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(got.Input()).To(Equal(changed))

		_, err = s.UpdateStudentByID(ctx, "missing", changed)
		g.Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())
	})

	t.Run("delete removes the record", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		a, err := s.CreateStudent(ctx, ann)
		g.Expect(err).NotTo(HaveOccurred())
		b, err := s.CreateStudent(ctx, bo)
		g.Expect(err).NotTo(HaveOccurred())

		g.Expect(s.DeleteStudentByID(ctx, a.ID)).To(Succeed())

		all, err := s.GetStudents(ctx)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(all).To(Equal([]types.Student{b}))

		err = s.DeleteStudentByID(ctx, a.ID)
		g.Expect(errors.Is(err, storage.ErrNotFound)).To(BeTrue())
	})
}
