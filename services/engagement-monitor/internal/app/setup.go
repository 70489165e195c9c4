package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/truesoul/outreach/internal/db"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup database tables",
	Long:  "Creates the senders, campaign_jobs, email_engagement_events and system_script_logs tables, and optionally registers a first sender",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if err := db.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		fmt.Println("Running migrations...")
		migrationSQL := `
			-- Monitored mailbox identities. last_checked_history_id is the
			-- scan watermark; NULL means never scanned.
			CREATE TABLE IF NOT EXISTS senders (
			    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			    sender_name VARCHAR(255),
			    sender_email VARCHAR(255) NOT NULL UNIQUE,
			    is_active BOOLEAN NOT NULL DEFAULT TRUE,
			    last_checked_history_id TEXT
			);

			-- Outbound jobs, created by the send API. email_message_id is the
			-- angle-bracketed Message-ID assigned at send time.
			CREATE TABLE IF NOT EXISTS campaign_jobs (
			    id BIGINT PRIMARY KEY,
			    campaign_id UUID,
			    lead_id UUID,
			    contact_email VARCHAR(255),
			    email_message_id TEXT,
			    status VARCHAR(32) NOT NULL DEFAULT 'pending',
			    status_updated_at TIMESTAMP WITH TIME ZONE,
			    next_processing_time TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_campaign_jobs_email_message_id ON campaign_jobs(email_message_id);
			CREATE INDEX IF NOT EXISTS idx_campaign_jobs_status ON campaign_jobs(status);

			-- Append-only engagement log, written only by the monitor.
			CREATE TABLE IF NOT EXISTS email_engagement_events (
			    id BIGSERIAL PRIMARY KEY,
			    campaign_job_id BIGINT REFERENCES campaign_jobs(id),
			    email_message_id TEXT,
			    event_type VARCHAR(32) NOT NULL,
			    event_timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);

			-- Remote audit sink for the logging hook.
			CREATE TABLE IF NOT EXISTS system_script_logs (
			    id BIGSERIAL PRIMARY KEY,
			    script_name VARCHAR(255),
			    log_level VARCHAR(16),
			    message TEXT,
			    details JSONB,
			    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
			);
		`

		if _, err := db.Pool.Exec(ctx, migrationSQL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		senderEmail, _ := cmd.Flags().GetString("sender-email")
		if senderEmail != "" {
			insertSenderSQL := `
				INSERT INTO senders (sender_email, is_active)
				VALUES ($1, TRUE)
				ON CONFLICT (sender_email) DO NOTHING
			`
			if _, err := db.Pool.Exec(ctx, insertSenderSQL, senderEmail); err != nil {
				return fmt.Errorf("failed to insert sender: %w", err)
			}
			fmt.Printf("✓ Registered sender: %s\n", senderEmail)
		}

		fmt.Println("✓ Database setup complete")
		return nil
	},
}

func init() {
	setupCmd.Flags().String("sender-email", "", "Register this mailbox as an active sender")

	rootCmd.AddCommand(setupCmd)
}
