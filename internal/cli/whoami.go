package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"deskhub.org/internal/session"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session, roles and effective permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := cmd.Context()

			rec, err := app.session.Current(ctx)
			if err != nil {
				if err == session.ErrNoSession {
					fmt.Println("not logged in")
					return nil
				}
				return err
			}

			fmt.Printf("user:  %s (%s)\n", rec.Username, rec.DisplayName)
			if rec.Email != "" {
				fmt.Printf("email: %s\n", rec.Email)
			}
			fmt.Printf("roles: %v (ids %v)\n",
				app.session.Roles(ctx), app.session.RoleIDs(ctx))
			if app.session.IsAdmin(ctx) {
				fmt.Println("admin: yes")
			}
			fmt.Println("effective permissions:")
			for _, p := range app.session.EffectivePermissions(ctx) {
				fmt.Printf("  %2d  %s\n", int(p), p)
			}
			return nil
		},
	}
}
