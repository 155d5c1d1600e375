// Package events publishes governance ledger entries to interested consumers
// over NATS. Publishing is best effort; a failed publish never fails the
// governed operation that produced the entry.
package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/codearena/codearena-go-api/internal/models"
)

// AuditPublisher fans appended ledger entries out on a NATS subject.
type AuditPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

type auditEvent struct {
	Entry  models.AuditLog `json:"entry"`
	SentAt time.Time       `json:"sent_at"`
}

// NewAuditPublisher builds a publisher for the given channel base. Both the
// connection and the base may be empty, yielding a disabled publisher.
func NewAuditPublisher(conn *nats.Conn, channelBase string, logger zerolog.Logger) *AuditPublisher {
	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".audit"
	}

	return &AuditPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "audit_publisher").Logger(),
	}
}

// Publish sends the entry to subscribers. Safe on a nil or disabled publisher.
func (p *AuditPublisher) Publish(entry models.AuditLog) {
	if p == nil || p.conn == nil || p.subject == "" {
		return
	}

	payload, err := json.Marshal(auditEvent{Entry: entry, SentAt: time.Now().UTC()})
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to encode audit event")
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", p.subject).Msg("failed to publish audit event")
	}
}
