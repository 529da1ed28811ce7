// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogBacktestSubmitted records who submitted a backtest.
func (al *AuditLogger) LogBacktestSubmitted(userID, backtestID, name, remoteAddr string) {
	al.WithFields(logrus.Fields{
		"user_id":     userID,
		"backtest_id": backtestID,
		"name":        name,
		"remote_addr": remoteAddr,
	}).Info("Backtest submitted")
}

// LogWebhookDelivery records the outcome of a completion webhook.
func (al *AuditLogger) LogWebhookDelivery(backtestID, status string, statusCode int, err error) {
	entry := al.WithFields(logrus.Fields{
		"backtest_id": backtestID,
		"status":      status,
		"status_code": statusCode,
	})
	if err != nil {
		entry.WithError(err).Warn("Webhook delivery failed")
		return
	}
	entry.Info("Webhook delivered")
}

// LogMigrationsApplied records applied schema migrations.
func (al *AuditLogger) LogMigrationsApplied(versions []string) {
	al.WithFields(logrus.Fields{
		"count":    len(versions),
		"versions": versions,
	}).Info("Database migrations applied")
}
