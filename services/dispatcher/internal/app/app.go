package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/truesoul/outreach/internal/db"
	"github.com/truesoul/outreach/internal/logging"
	"github.com/truesoul/outreach/services/dispatcher/internal/dispatch"
	"github.com/truesoul/outreach/services/dispatcher/internal/manifest"
)

const scriptName = "dispatcher"

var rootCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Campaign job dispatcher",
	Long:  "Reads a job manifest CSV and triggers the send API for every job that is due and still dispatchable",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run dispatch passes",
	Long:  "Runs one manifest pass, or loops when --interval is set. The manifest is re-read every pass so schedule edits take effect without a restart",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		disp, log, err := buildDispatcher(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		manifestPath := viper.GetString("dispatcher.manifest_path")

		runPass := func() {
			entries, err := manifest.Load(manifestPath, log)
			if err != nil {
				log.WithFields(logrus.Fields{
					"manifest": manifestPath,
					"error":    err,
				}).Error("Failed to load manifest")
				return
			}
			if err := disp.RunOnce(ctx, entries); err != nil {
				log.WithField("error", err).Error("Dispatch pass failed")
			}
		}

		interval := viper.GetDuration("interval")
		if interval <= 0 {
			runPass()
			return nil
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			runPass()
			select {
			case <-sigChan:
				log.Info("Shutting down")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func buildDispatcher(ctx context.Context) (*dispatch.Dispatcher, *logrus.Logger, error) {
	endpoint := viper.GetString("dispatcher.api_endpoint")
	if endpoint == "" {
		return nil, nil, fmt.Errorf("dispatcher.api_endpoint not configured")
	}

	if err := db.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	log := logging.New(viper.GetString("log.level"))
	auditLevel, err := logrus.ParseLevel(viper.GetString("log.audit_level"))
	if err != nil {
		auditLevel = logrus.WarnLevel
	}
	logging.AttachAuditHook(log, db.Pool, scriptName, auditLevel)

	return dispatch.New(dispatch.NewStore(db.Pool), endpoint, log), log, nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("database.url", "", "Database connection URL")
	rootCmd.PersistentFlags().String("dispatcher.manifest_path", "job_manifest.csv", "Path to the job manifest CSV")
	rootCmd.PersistentFlags().String("dispatcher.api_endpoint", "", "Send API endpoint URL")
	rootCmd.PersistentFlags().String("log.level", "info", "Console log level")
	rootCmd.PersistentFlags().String("log.audit_level", "warning", "Minimum level persisted to system_script_logs")
	runCmd.Flags().Duration("interval", 0, "Run continuously with this interval (0 = one pass)")

	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database.url"))
	viper.BindPFlag("dispatcher.manifest_path", rootCmd.PersistentFlags().Lookup("dispatcher.manifest_path"))
	viper.BindPFlag("dispatcher.api_endpoint", rootCmd.PersistentFlags().Lookup("dispatcher.api_endpoint"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log.level"))
	viper.BindPFlag("log.audit_level", rootCmd.PersistentFlags().Lookup("log.audit_level"))
	viper.BindPFlag("interval", runCmd.Flags().Lookup("interval"))

	// Environment names kept from the original deployment.
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("dispatcher.manifest_path", "CRON_MANIFEST_PATH")
	viper.BindEnv("dispatcher.api_endpoint", "API_ENDPOINT")

	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	// .env.local overrides .env; godotenv never clobbers real env vars.
	godotenv.Load(".env.local")
	godotenv.Load(".env")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./services/dispatcher")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
