package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/students-client/internal/types"
	"github.com/aanand-mishra/students-client/internal/ui"
	"github.com/aanand-mishra/students-client/internal/validation"
)

const shellHelp = `Commands:
  add              add a student
  edit <id>        edit a student
  delete <id>      delete a student
  search [term]    filter the list; no term clears the filter
  refresh          refetch the list
  help             show this help
  quit             leave the shell`

func newShellCmd(env func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive list with add, edit, delete and search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &shell{
				out:    cmd.OutOrStdout(),
				prompt: newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
			}
			s.app = ui.NewApp(env().store, s.prompt, nil)
			defer s.app.Close()

			return s.run(cmd.Context())
		},
	}
}

type shell struct {
	app    *ui.App
	out    io.Writer
	prompt *prompter
}

func (s *shell) run(ctx context.Context) error {
	if err := s.app.Refresh(ctx); err != nil {
		fmt.Fprintf(s.out, "error: %s\n", err)
	}
	s.render()

	for {
		line, ok := s.prompt.line("> ")
		if !ok {
			return nil
		}

		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		var err error
		switch name {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(s.out, shellHelp)
			continue
		case "add":
			err = s.edit(ctx, nil)
		case "edit":
			err = s.withStudent(arg, func(st types.Student) error { return s.edit(ctx, &st) })
		case "delete":
			err = s.withStudent(arg, func(st types.Student) error {
				_, err := s.app.List().Delete(ctx, st.ID, st.Name)
				return err
			})
		case "search":
			s.app.List().SetSearch(arg)
		case "refresh":
			err = s.app.Refresh(ctx)
		default:
			fmt.Fprintf(s.out, "unknown command %q, try help\n", name)
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errSkipped) {
			continue
		}
		if err != nil {
			// Mutation failures were already announced by the notifier.
			if name == "refresh" {
				fmt.Fprintf(s.out, "error: %s\n", err)
			}
			continue
		}

		// Refresh joins the refetch the mutation started. If that fetch was
		// already running before the mutation, the cache fetches once more in
		// the background and the list shown here may briefly lag.
		if name != "search" && name != "refresh" {
			if err := s.app.Refresh(ctx); err != nil {
				fmt.Fprintf(s.out, "error: %s\n", err)
			}
		}
		s.render()
	}
}

func (s *shell) render() {
	fmt.Fprintln(s.out)
	if err := s.app.Render(s.out); err != nil {
		fmt.Fprintf(s.out, "error: %s\n", err)
	}
}

// errSkipped means the command did nothing and has said why.
var errSkipped = errors.New("skipped")

func (s *shell) withStudent(id string, fn func(types.Student) error) error {
	if id == "" {
		fmt.Fprintln(s.out, "usage: edit <id> | delete <id>")
		return errSkipped
	}

	st, ok := s.app.Find(id)
	if !ok {
		fmt.Fprintf(s.out, "No student with id %s\n", id)
		return errSkipped
	}
	return fn(st)
}

// edit runs the modal: prompt for every field and submit. After invalid
// input or a failed save the user can try again with the values kept.
func (s *shell) edit(ctx context.Context, student *types.Student) error {
	var form *ui.Form
	if student != nil {
		form = s.app.OpenEdit(*student)
	} else {
		form = s.app.OpenAdd()
	}

	for {
		form.Values.Name = s.prompt.ask("Name", form.Values.Name)
		form.Values.Email = s.prompt.ask("Email", form.Values.Email)
		form.Values.Course = s.prompt.ask("Course", form.Values.Course)
		age := s.prompt.ask("Age", strconv.Itoa(form.Values.Age))
		// A non-number fails the age rule.
		form.Values.Age, _ = strconv.Atoi(age)

		_, err := s.app.Submit(ctx)
		if err == nil {
			return nil
		}

		if validation.Fields(err) != nil {
			s.render()
		}
		if !s.prompt.Confirm("Try again?") {
			s.app.CloseModal()
			return errSkipped
		}
	}
}
