package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// New builds the service logger. levelStr is parsed leniently; an
// unrecognized value falls back to info.
func New(levelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// auditHook mirrors warning-and-above records into the system_script_logs
// table. Inserts run on a fire-and-forget goroutine so a slow or failing
// database never stalls the main loop; delivery failures go to stderr only.
type auditHook struct {
	pool       *pgxpool.Pool
	scriptName string
	levels     []logrus.Level
}

// AttachAuditHook adds the remote audit sink to log. minLevel is the least
// severe level that gets persisted (e.g. logrus.WarnLevel).
func AttachAuditHook(log *logrus.Logger, pool *pgxpool.Pool, scriptName string, minLevel logrus.Level) {
	log.AddHook(&auditHook{
		pool:       pool,
		scriptName: scriptName,
		levels:     logrus.AllLevels[:minLevel+1],
	})
}

func (h *auditHook) Levels() []logrus.Level {
	return h.levels
}

func (h *auditHook) Fire(entry *logrus.Entry) error {
	details := make(map[string]interface{}, len(entry.Data))
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			details[k] = err.Error()
			continue
		}
		details[k] = v
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := h.pool.Exec(ctx,
			`INSERT INTO system_script_logs (script_name, log_level, message, details)
			 VALUES ($1, $2, $3, $4)`,
			h.scriptName, entry.Level.String(), entry.Message, details,
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "audit log insert failed: %v\n", err)
		}
	}()

	return nil
}
