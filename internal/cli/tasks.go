package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/amirbrooks/tasker-chat/internal/client"
	"github.com/amirbrooks/tasker-chat/internal/store"
)

func newAddCmd(gf *GlobalFlags) *cobra.Command {
	var description, due string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			task, err := newClient(gf).Create(cmd.Context(), store.NewTask{
				Title:       strings.TrimSpace(strings.Join(args, " ")),
				Description: description,
				Due:         due,
			})
			if err != nil {
				return err
			}
			if gf.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"task": task})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s (%s)\n", task.DisplayID, task.Title, task.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&description, "description", "", "longer task description")
	cmd.Flags().StringVar(&due, "due", "", "due date, RFC 3339 or YYYY-MM-DD")
	return cmd
}

func newListCmd(gf *GlobalFlags) *cobra.Command {
	var open, done bool
	var sortKey string
	var limit, offset int
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			if open && done {
				return usageError("--open and --done are mutually exclusive")
			}
			opts := client.ListOptions{Sort: sortKey, Limit: limit, Offset: offset}
			if open || done {
				completed := done
				opts.Completed = &completed
			}
			page, err := newClient(gf).List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if gf.JSON {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			printTasks(cmd.OutOrStdout(), page.Items)
			if page.Page.Total > len(page.Items) {
				fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d shown)\n", len(page.Items), page.Page.Total)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&open, "open", false, "only open tasks")
	cmd.Flags().BoolVar(&done, "done", false, "only completed tasks")
	cmd.Flags().StringVar(&sortKey, "sort", "", "sort key: display_id|created_at|updated_at|due_date|id (prefix - for descending)")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default 50, max 200)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func newDoneCmd(gf *GlobalFlags) *cobra.Command {
	var undo bool
	cmd := &cobra.Command{
		Use:   "done <number|id|text>",
		Short: "Mark a task completed",
		Args:  cobra.MinimumNArgs(1),
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			c := newClient(gf)
			task, err := resolveTask(cmd.Context(), c, strings.Join(args, " "))
			if err != nil {
				return err
			}
			task, err = c.SetCompleted(cmd.Context(), task.ID, !undo)
			if err != nil {
				return err
			}
			if gf.JSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"task": task})
			}
			verb := "Done"
			if undo {
				verb = "Reopened"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d %s\n", verb, task.DisplayID, task.Title)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task open again")
	return cmd
}

func newRemoveCmd(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <number|id|text>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.MinimumNArgs(1),
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			c := newClient(gf)
			task, err := resolveTask(cmd.Context(), c, strings.Join(args, " "))
			if err != nil {
				return err
			}
			del, err := c.Delete(cmd.Context(), task.ID)
			if err != nil {
				return err
			}
			if gf.JSON {
				return writeJSON(cmd.OutOrStdout(), del)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d %s\n", del.RemovedTask.DisplayID, del.RemovedTask.Title)
			fmt.Fprintf(cmd.OutOrStdout(), "Undo: tasker undo %s\n", del.UndoToken)
			return nil
		}),
	}
}

func newClearCmd(gf *GlobalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every task",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			if !yes {
				return usageError("clear deletes every task; pass --yes to confirm")
			}
			del, err := newClient(gf).DeleteAll(cmd.Context())
			if err != nil {
				return err
			}
			if gf.JSON {
				return writeJSON(cmd.OutOrStdout(), del)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d task(s)\n", del.Deleted)
			fmt.Fprintf(cmd.OutOrStdout(), "Undo: tasker undo %s\n", del.UndoToken)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all tasks")
	return cmd
}

func newUndoCmd(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <token>",
		Short: "Restore tasks removed by a delete",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			out, err := newClient(gf).Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if gf.JSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d task(s)\n", out.Restored)
			printTasks(cmd.OutOrStdout(), out.Items)
			return nil
		}),
	}
}

func newChatCmd(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a plain-language command",
		Args:  cobra.MinimumNArgs(1),
		RunE: runE(func(cmd *cobra.Command, args []string) error {
			reply, err := newClient(gf).Chat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if gf.JSON {
				return writeJSON(cmd.OutOrStdout(), reply)
			}
			if reply.AssistantMessage != "" {
				fmt.Fprintln(cmd.OutOrStdout(), reply.AssistantMessage)
			}
			for _, ch := range reply.Choices {
				fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s\n", ch.DisplayID, ch.Title)
			}
			return nil
		}),
	}
}

// resolveTask finds the single task sel names. Task ids go straight to the
// server; numbers and text are matched against the current list.
func resolveTask(ctx context.Context, c *client.Client, sel string) (store.Task, error) {
	sel = strings.TrimSpace(sel)
	if strings.HasPrefix(sel, "tsk_") {
		return c.Get(ctx, sel)
	}
	ref, err := store.ParseRef(sel)
	if err != nil {
		return store.Task{}, usageError("%v", err)
	}
	page, err := c.List(ctx, client.ListOptions{Limit: 200})
	if err != nil {
		return store.Task{}, err
	}
	res := store.Resolve(ref, page.Items)
	switch res.Kind {
	case store.Unique:
		return res.Task, nil
	case store.Ambiguous:
		var b strings.Builder
		for _, t := range res.Candidates {
			fmt.Fprintf(&b, "\n  #%d %s", t.DisplayID, t.Title)
		}
		return store.Task{}, &exitError{code: ExitConflict, err: fmt.Errorf("%q matches %d tasks; pick one by number:%s", sel, len(res.Candidates), b.String())}
	default:
		return store.Task{}, &exitError{code: ExitNotFound, err: errors.New("no task matches " + ref.String())}
	}
}

func printTasks(w io.Writer, tasks []store.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tST\tDUE\tID\tTITLE")
	for _, t := range tasks {
		st := "open"
		if t.Completed {
			st = "done"
		}
		due := t.Due
		if due == "" {
			due = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.DisplayID, st, due, t.ID, t.Title)
	}
	_ = tw.Flush()
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func newClient(gf *GlobalFlags) *client.Client {
	return client.New(gf.Server, nil)
}
