package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"deskhub.org/internal/api"
)

func newTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List and mutate helpdesk tickets",
	}
	cmd.AddCommand(newTicketsListCmd())
	cmd.AddCommand(newTicketsCreateCmd())
	cmd.AddCommand(newTicketsUpdateCmd())
	cmd.AddCommand(newTicketsDeleteCmd())
	return cmd
}

func newTicketsListCmd() *cobra.Command {
	var params api.ListTicketsParams
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets, falling back to the cached snapshot when needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			app.tickets.Start(cmd.Context())

			res, err := app.tickets.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			if res.FromCache {
				note := "showing cached data"
				if res.Stale {
					note += " (stale)"
				}
				fmt.Fprintf(os.Stderr, "%s from %s\n", note, res.CapturedAt.Format("15:04:05"))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tSUBJECT")
			for _, t := range res.Tickets {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Subject)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("%d of %d tickets\n", len(res.Tickets), res.TotalCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&params.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&params.PageSize, "page-size", 20, "Tickets per page")
	cmd.Flags().StringVar(&params.Status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&params.Priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&params.Category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&params.Search, "search", "", "Free-text search")
	return cmd
}

func newTicketsCreateCmd() *cobra.Command {
	var subject, body, priority, category string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket, deferring to the sync queue when offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			payload, err := json.Marshal(map[string]string{
				"subject":  subject,
				"body":     body,
				"priority": priority,
				"category": category,
			})
			if err != nil {
				return err
			}
			if err := app.tickets.Create(cmd.Context(), payload); err != nil {
				return err
			}
			if app.tickets.Online() {
				fmt.Println("ticket created")
			} else {
				fmt.Println("ticket queued for sync")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Ticket subject")
	cmd.Flags().StringVar(&body, "body", "", "Ticket body")
	cmd.Flags().StringVar(&priority, "priority", "", "Ticket priority")
	cmd.Flags().StringVar(&category, "category", "", "Ticket category")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newTicketsUpdateCmd() *cobra.Command {
	var status, priority, assignee string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a ticket, deferring to the sync queue when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			fields := map[string]string{}
			if status != "" {
				fields["status"] = status
			}
			if priority != "" {
				fields["priority"] = priority
			}
			if assignee != "" {
				fields["assigned_to"] = assignee
			}
			if len(fields) == 0 {
				return fmt.Errorf("nothing to update")
			}
			payload, err := json.Marshal(fields)
			if err != nil {
				return err
			}
			return app.tickets.Update(cmd.Context(), args[0], payload)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "New status")
	cmd.Flags().StringVar(&priority, "priority", "", "New priority")
	cmd.Flags().StringVar(&assignee, "assign", "", "New assignee")
	return cmd
}

func newTicketsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a ticket, deferring to the sync queue when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.tickets.Delete(cmd.Context(), args[0])
		},
	}
}
