package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"TdnetDownloader/internal/app"
	"TdnetDownloader/internal/config"
	"TdnetDownloader/internal/logging"
)

var (
	configPath string
	targetDate string
	outputDir  string
)

var rootCmd = &cobra.Command{
	Use:   "tdnetdl",
	Short: "tdnetdl downloads one day of TDnet disclosure documents.",
	Long: "tdnetdl walks the TDnet listing for a date (today in JST by default), " +
		"drops ETF/ETN, REIT and correction notices, and saves the remaining PDFs " +
		"into a yymmdd directory. Files already on disk are never fetched again.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (defaults to $TDNET_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output", "", "directory that receives the yymmdd folders")
	rootCmd.Flags().StringVar(&targetDate, "date", "", "target date as YYYYMMDD (defaults to today in JST)")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg := config.Load(configPath)
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	return cfg
}

func runOnce(cmd *cobra.Command, _ []string) error {
	day, err := parseTargetDate(targetDate, time.Now())
	if err != nil {
		return err
	}

	cfg := loadConfig()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if _, err := application.Run(cmd.Context(), day); err != nil {
		logger.Error("run aborted", "error", err)
		return err
	}
	return nil
}

// parseTargetDate reads YYYYMMDD as a JST calendar day; empty means the JST
// day containing now.
func parseTargetDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now.In(app.JST), nil
	}
	day, err := time.ParseInLocation("20060102", value, app.JST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYYMMDD: %w", value, err)
	}
	return day, nil
}
