// floatshare computes S&P-style adjusted float share percentages from
// company proxy statements.
//
// Usage:
//
//	floatshare constituents [--index sp500|sp400|sp600|sp1500] [--csv FILE]
//	floatshare filing-url TICKER
//	floatshare analyze TICKER [--html FILE]
//	floatshare analyze-docs --proxy PATH [--methodology PATH] [--output FILE]
//	floatshare batch [--limit N] [--tickers A,B] [--html FILE]
//	floatshare methodology [--doc PATH]
//	floatshare artifacts [--kind KIND]
//	floatshare documents
//	floatshare cleanup [--days N]
package main

import (
	"context"
	"float_share/pkg/core/config"
	"float_share/pkg/core/logging"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
}

// Populated by setup before any command runs.
var (
	appConfig = config.Default()
	appLogger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "floatshare",
	Short: "Float share analysis for S&P index constituents",
	Long: "floatshare resolves a company's latest DEF 14A proxy statement, extracts\n" +
		"ownership disclosures with Gemini and computes the adjusted float share\n" +
		"percentage under the S&P float adjustment methodology.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "floatshare.yaml", "Config file (optional)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(constituentsCmd)
	rootCmd.AddCommand(filingURLCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(analyzeDocsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(methodologyCmd)
	rootCmd.AddCommand(artifactsCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.Version = version
}

func setup(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()
	if envErr != nil && !os.IsNotExist(envErr) {
		return fmt.Errorf("load .env: %w", envErr)
	}

	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		cfg.Log.Level = rootFlags.logLevel
	}

	appConfig = cfg
	appLogger = logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(appLogger)

	if envErr != nil {
		appLogger.Warn(".env file not found, relying on environment variables")
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
