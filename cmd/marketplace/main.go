package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openmarket/marketplace/core"
)

var (
	// Global flags
	configFile string
	storage    string
	sqlitePath string
	redisURL   string
	port       int
	devMode    bool
	verbose    bool
	timeout    time.Duration

	cfg    *core.Config
	logger *core.ProductionLogger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "marketplace",
	Short: "Open Marketplace storefront service",
	Long: `marketplace runs the Open Marketplace storefront: a mock login gate,
a product catalog and a shopping cart with simulated checkout.

State lives in three storage slots (auth, products, cart) in SQLite,
Redis or process memory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := []core.Option{}
		if configFile != "" {
			opts = append(opts, core.WithConfigFile(configFile))
		}
		if cmd.Flags().Changed("storage") {
			opts = append(opts, core.WithStorage(storage))
		}
		if sqlitePath != "" {
			opts = append(opts, core.WithSQLitePath(sqlitePath))
		}
		if redisURL != "" {
			opts = append(opts, core.WithRedisURL(redisURL))
		}
		if cmd.Flags().Changed("port") {
			opts = append(opts, core.WithPort(port))
		}
		if devMode {
			opts = append(opts, core.WithDevelopmentMode(true))
		}
		if verbose {
			opts = append(opts, core.WithLogLevel("debug"))
		}

		var err error
		cfg, err = core.NewConfig(opts...)
		if err != nil {
			return err
		}

		logger, err = core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&storage, "storage", "sqlite", "Storage provider: memory, sqlite or redis")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite database file")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "Redis URL (selects the redis provider)")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 8080, "HTTP port")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Development mode: debug text logs, stdout traces")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for one-shot commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
