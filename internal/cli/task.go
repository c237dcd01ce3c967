package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления задачами парсинга.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage parsing tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskWatchCmd(clientFn, outputFn),
		newTaskCancelCmd(clientFn, outputFn),
		newTaskResumeCmd(clientFn, outputFn),
		newTaskDeleteCmd(clientFn, outputFn),
		newTaskEventsCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(ListTasksOpts{
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "SCOPE", "STATUS", "PROGRESS", "POSTS", "COMMENTS", "CREATED"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{
					t.ID, t.Scope, t.Status,
					fmt.Sprintf("%d/%d", t.ProcessedItems, t.TotalItems),
					strconv.Itoa(t.PostsSaved), strconv.Itoa(t.CommentsSaved),
					t.CreatedAt,
				}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var scope string
	var groups []string
	var postLimit int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a parsing task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateTaskRequest{
				Scope:     scope,
				PostLimit: postLimit,
			}

			for _, g := range groups {
				for _, part := range strings.Split(g, ",") {
					id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid group id %q", part)
					}
					req.GroupIDs = append(req.GroupIDs, id)
				}
			}

			task, err := client.CreateTask(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task created: %s", task.ID))
			out.Print(
				[]string{"ID", "SCOPE", "STATUS", "GROUPS", "POST_LIMIT"},
				[][]string{{task.ID, task.Scope, task.Status, strconv.Itoa(task.TotalItems), strconv.Itoa(task.PostLimit)}},
				task,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "ALL", "Task scope (ALL or SELECTED)")
	cmd.Flags().StringSliceVar(&groups, "group", nil, "VK group IDs for SELECTED scope (repeatable)")
	cmd.Flags().IntVar(&postLimit, "post-limit", 100, "Posts to fetch per group")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(args[0])
			if err != nil {
				return err
			}

			skipped := ""
			if len(task.SkippedGroupVkIDs) > 0 {
				parts := make([]string, len(task.SkippedGroupVkIDs))
				for i, id := range task.SkippedGroupVkIDs {
					parts[i] = strconv.FormatInt(id, 10)
				}
				skipped = strings.Join(parts, ",")
			}

			out.Print(
				[]string{"ID", "SCOPE", "STATUS", "PROGRESS", "POSTS", "COMMENTS", "AUTHORS", "SKIPPED", "ERROR"},
				[][]string{{
					task.ID, task.Scope, task.Status,
					fmt.Sprintf("%d/%d", task.ProcessedItems, task.TotalItems),
					strconv.Itoa(task.PostsSaved), strconv.Itoa(task.CommentsSaved),
					strconv.Itoa(task.AuthorsSaved), skipped, task.Error,
				}},
				task,
			)
			return nil
		},
	}
}

func newTaskWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Watch task progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			for {
				task, err := client.GetTask(args[0])
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d/%d  posts=%d comments=%d\n",
					task.ID, task.Status,
					task.ProcessedItems, task.TotalItems,
					task.PostsSaved, task.CommentsSaved,
				)

				if task.Status == "COMPLETED" || task.Status == "FAILED" {
					if task.Error != "" {
						return fmt.Errorf("task finished with error: %s", task.Error)
					}
					out.Success(fmt.Sprintf("Task finished: %s", task.Status))
					return nil
				}

				time.Sleep(interval)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")

	return cmd
}

func newTaskCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Request task cancellation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.CancelTask(args[0], reason); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason")

	return cmd
}

func newTaskResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a failed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.ResumeTask(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task resumed: %s", task.ID))
			return nil
		},
	}
}

func newTaskDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteTask(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task deleted: %s", args[0]))
			return nil
		},
	}
}

func newTaskEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "events TASK_ID",
		Short: "List task lifecycle events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListTaskEvents(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TYPE", "CREATED"}
			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = []string{e.Type, e.CreatedAt}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}
}
