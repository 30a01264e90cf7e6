package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deskhub.org/internal/obs"
)

func newWatchCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the background agent: expiry sweep, sync drain and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			log := obs.Logger()

			app.session.OnExpiryWarning(func() {
				log.Info("access token expiring soon, refreshing")
			})
			app.session.OnSessionExpired(func() {
				log.Warn("session ended, log in again")
			})

			app.session.StartSweep(cmd.Context())
			app.tickets.Start(cmd.Context())

			var srv *http.Server
			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", obs.Handler())
				srv = &http.Server{
					Addr:              metricsAddr,
					Handler:           mux,
					ReadTimeout:       15 * time.Second,
					ReadHeaderTimeout: 15 * time.Second,
					WriteTimeout:      15 * time.Second,
					IdleTimeout:       60 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Error("metrics listener failed", zap.Error(err))
					}
				}()
				log.Info("serving metrics", zap.String("addr", metricsAddr))
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			fmt.Fprintln(os.Stderr, "shutting down")
			if srv != nil {
				_ = srv.Close()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus endpoint (disabled when empty)")
	return cmd
}
