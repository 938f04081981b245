package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"TdnetDownloader/internal/app"
	"TdnetDownloader/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the download for the current JST day on a fixed interval.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := loadConfig()
		logger := logging.New(cfg.Logging.Level)

		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		return application.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
