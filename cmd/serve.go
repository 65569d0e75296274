package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaramelBytes/dosifier-cli/internal/schedule"
	"github.com/KaramelBytes/dosifier-cli/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort   int
	serveNoCron bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with scheduled table reloads and history pruning",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(os.Stderr, "[dosifier] ", log.LstdFlags)
		d, err := openDosifier(logger)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if !serveNoCron {
			sched, err := schedule.New(schedule.Config{
				ReloadSpec: cfg.ReloadSchedule,
				PruneSpec:  cfg.PruneSchedule,
				Retention:  time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour,
			}, d, logger)
			if err != nil {
				return err
			}
			done := make(chan struct{})
			go func() {
				sched.Run(ctx)
				close(done)
			}()
			defer func() {
				cancel()
				<-done
			}()
		}

		port := cfg.ServerPort
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		srv := server.New(server.Config{Port: port, BearerToken: cfg.APIBearerToken}, d)
		logger.Printf("HTTP API listening on %s (history: %s)", server.Config{Port: port}.ListenAddr(), cfg.HistoryDriver)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "listen port (overrides server_port)")
	serveCmd.Flags().BoolVar(&serveNoCron, "no-cron", false, "disable scheduled reload and prune jobs")
}
