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
	"github.com/truesoul/outreach/services/engagement-monitor/internal/gmail"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/monitor"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/store"
)

const scriptName = "engagement-monitor"

var rootCmd = &cobra.Command{
	Use:   "engagement-monitor",
	Short: "Gmail engagement monitor",
	Long:  "Watches the inboxes of active senders and reconciles replies, bounces and delivery confirmations into campaign jobs",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run monitoring cycles",
	Long:  "Runs one scan-and-classify cycle for all active senders, or loops when --interval is set",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mon, log, err := buildMonitor(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		interval := viper.GetDuration("interval")
		if interval <= 0 {
			return mon.RunCycle(ctx)
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := mon.RunCycle(ctx); err != nil {
				log.WithField("error", err).Error("Monitoring cycle failed")
			}
			select {
			case <-sigChan:
				log.Info("Shutting down")
				return nil
			case <-ticker.C:
			}
		}
	},
}

// buildMonitor wires the database pool, logger, store and monitor.
// Configuration errors here are fatal: the process exits non-zero.
func buildMonitor(ctx context.Context) (*monitor.Monitor, *logrus.Logger, error) {
	if viper.GetString("gmail.service_account_key") == "" && viper.GetString("gmail.api_url") == "" {
		return nil, nil, fmt.Errorf("gmail.service_account_key not configured")
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

	mailboxFor := func(ctx context.Context, senderEmail string) (gmail.Mailbox, error) {
		return gmail.NewService(ctx, senderEmail)
	}

	mon := monitor.New(store.NewStore(db.Pool), mailboxFor, log)
	if d := viper.GetDuration("monitor.message_delay"); d > 0 {
		mon.MessageDelay = d
	}
	return mon, log, nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("database.url", "", "Database connection URL")
	rootCmd.PersistentFlags().String("gmail.api_url", "", "Gmail API base URL override (local mock)")
	rootCmd.PersistentFlags().String("log.level", "info", "Console log level")
	rootCmd.PersistentFlags().String("log.audit_level", "warning", "Minimum level persisted to system_script_logs")
	rootCmd.PersistentFlags().Duration("monitor.message_delay", 500*time.Millisecond, "Delay between message-level API calls")
	runCmd.Flags().Duration("interval", 0, "Run continuously with this interval (0 = one cycle)")

	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database.url"))
	viper.BindPFlag("gmail.api_url", rootCmd.PersistentFlags().Lookup("gmail.api_url"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log.level"))
	viper.BindPFlag("log.audit_level", rootCmd.PersistentFlags().Lookup("log.audit_level"))
	viper.BindPFlag("monitor.message_delay", rootCmd.PersistentFlags().Lookup("monitor.message_delay"))
	viper.BindPFlag("interval", runCmd.Flags().Lookup("interval"))

	// Environment names kept from the original deployment.
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("gmail.service_account_key", "GOOGLE_SERVICE_ACCOUNT_KEY")
	viper.BindEnv("log.level", "GMAIL_MONITOR_CONSOLE_LOG_LEVEL")

	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	// .env.local overrides .env; godotenv never clobbers real env vars.
	godotenv.Load(".env.local")
	godotenv.Load(".env")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./services/engagement-monitor")
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
