package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var drain bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Show pending offline changes, optionally replaying them",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()

			if drain {
				if !app.tickets.Online() {
					return fmt.Errorf("cannot drain the sync queue while offline")
				}
				if err := app.tickets.ProcessSyncQueue(ctx); err != nil {
					return err
				}
			}

			pending, err := app.tickets.Pending(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("sync queue is empty")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tTICKET\tENQUEUED\tRETRIES")
			for _, item := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					item.Kind, item.TicketID,
					item.EnqueuedAt.Format("2006-01-02 15:04:05"),
					item.RetryCount,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&drain, "drain", false, "Replay pending changes now")
	return cmd
}
