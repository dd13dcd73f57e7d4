package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/students-client/internal/studentsync"
	"github.com/aanand-mishra/students-client/internal/types"
	"github.com/aanand-mishra/students-client/internal/ui"
	"github.com/aanand-mishra/students-client/internal/validation"
)

func newListCmd(env func() *env) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students, optionally matching a search term",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			students, err := env().store.FetchCollection(cmd.Context(), search)
			if err != nil {
				return err
			}

			list := ui.NewList(nil, nil)
			list.SetStudents(students, false)
			list.SetSearch(search)
			return list.Render(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "match name, email or course")
	return cmd
}

func newGetCmd(env func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env().store.FetchStudent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStudent(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

// studentFlags binds --name, --email, --course and --age.
type studentFlags struct {
	name, email, course string
	age                 int
}

func (f *studentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "full name, at least 2 characters")
	cmd.Flags().StringVar(&f.email, "email", "", "email address")
	cmd.Flags().StringVar(&f.course, "course", "", "course name")
	cmd.Flags().IntVar(&f.age, "age", ui.DefaultAge, "age, 16 to 100")
}

// apply copies the flags the user set onto form.
func (f *studentFlags) apply(cmd *cobra.Command, form *ui.Form) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		form.Values.Name = f.name
	}
	if flags.Changed("email") {
		form.Values.Email = f.email
	}
	if flags.Changed("course") {
		form.Values.Course = f.course
	}
	if flags.Changed("age") {
		form.Values.Age = f.age
	}
}

func newCreateCmd(env func() *env) *cobra.Command {
	var flags studentFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			form := ui.NewForm(nil)
			flags.apply(cmd, form)

			in, err := form.Submit()
			if err != nil {
				printFieldErrors(cmd.ErrOrStderr(), err)
				return err
			}

			created, err := env().store.Create().Mutate(cmd.Context(), in)
			if err != nil {
				return err
			}
			printStudent(cmd.OutOrStdout(), created)
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}

func newUpdateCmd(env func() *env) *cobra.Command {
	var flags studentFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a student; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := env()

			existing, err := e.store.FetchStudent(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			form := ui.NewForm(&existing)
			flags.apply(cmd, form)

			in, err := form.Submit()
			if err != nil {
				printFieldErrors(cmd.ErrOrStderr(), err)
				return err
			}

			updated, err := e.store.Update().Mutate(cmd.Context(), studentsync.UpdateArgs{ID: existing.ID, Student: in})
			if err != nil {
				return err
			}
			printStudent(cmd.OutOrStdout(), updated)
			return nil
		},
	}

	flags.bind(cmd)
	return cmd
}

func newDeleteCmd(env func() *env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a student after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := env()

			existing, err := e.store.FetchStudent(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var confirm ui.Confirmer = ui.ConfirmFunc(func(string) bool { return true })
			if !yes {
				confirm = newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			attempted, err := ui.NewList(e.store.Delete(), confirm).Delete(cmd.Context(), existing.ID, existing.Name)
			if err != nil {
				return err
			}
			if !attempted {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func printStudent(w io.Writer, s types.Student) {
	fmt.Fprintf(w, "ID:     %s\nName:   %s\nEmail:  %s\nCourse: %s\nAge:    %d\n",
		s.ID, s.Name, s.Email, s.Course, s.Age)
}

// printFieldErrors lists validation messages in field order.
func printFieldErrors(w io.Writer, err error) {
	fields := validation.Fields(err)
	if len(fields) == 0 {
		return
	}

	order := map[string]int{"name": 0, "email": 1, "course": 2, "age": 3}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return order[keys[i]] < order[keys[j]] })

	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %s\n", k, fields[k])
	}
}

// prompter reads answers line by line from the terminal.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

// line prints prompt and returns the next line, or false at end of input.
func (p *prompter) line(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

// ask returns the answer, or def when the answer is empty.
func (p *prompter) ask(label, def string) string {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}

	answer, ok := p.line(prompt)
	if !ok || answer == "" {
		return def
	}
	return answer
}

func (p *prompter) Confirm(prompt string) bool {
	answer, _ := p.line(prompt + " [y/N]: ")
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
