// Command migrate creates the detection_results table and exits.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"imagedetect/internal/config"
	"imagedetect/internal/logger"
	"imagedetect/internal/repository/gormdb"
)

func main() {
	if err := command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var (
		configFile string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Initialize the detection store schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			if configFile != "" {
				v.SetConfigFile(configFile)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			log, err := logger.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			store, err := gormdb.Open(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := store.InitializeSchema(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready on %s database %s\n", cfg.DBDriver, schemaTarget(cfg))
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "optional YAML config file")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "give up after this long")
	return cmd
}

func schemaTarget(cfg *config.Config) string {
	if cfg.DBDriver == config.DriverSQLite {
		return cfg.SQLitePath
	}
	return cfg.DBName
}
