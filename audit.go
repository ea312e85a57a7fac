package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const auditQueue = "branch_protection_events"

// protectionOutcome classifies what happened to one repository during a
// delivery.
type protectionOutcome string

const (
	outcomeProtected        protectionOutcome = "protected"
	outcomeAlreadyProtected protectionOutcome = "already_protected"
	outcomeSkippedPrivate   protectionOutcome = "skipped_private"
	outcomeFailed           protectionOutcome = "failed"
)

// ProtectionEvent is the audit record published for every repository the
// orchestrator touches.
type ProtectionEvent struct {
	ID        string            `json:"id"`
	Repo      string            `json:"repo"`
	Branch    string            `json:"branch"`
	Outcome   protectionOutcome `json:"outcome"`
	Timestamp time.Time         `json:"timestamp"`
}

// AuditPublisher wraps an AMQP connection and a dedicated publish channel.
// The mutex guards the channel across concurrent webhook handler goroutines —
// amqp091-go channels are not goroutine-safe.
type AuditPublisher struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   *amqp.Channel
}

// NewAuditPublisher dials the broker at url, opens a publish channel, and
// declares the durable audit queue. Durable queues and persistent messages
// survive a broker restart.
func NewAuditPublisher(url string) (*AuditPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to connect to %s: %w", url, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: failed to open publish channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		auditQueue, // queue name
		true,       // durable
		false,      // auto-delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // additional arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("audit: failed to declare queue %q: %w", auditQueue, err)
	}

	log.Printf("[Audit] Queue declared: %q\n", auditQueue)
	return &AuditPublisher{conn: conn, ch: ch}, nil
}

// Publish serialises the event as JSON and sends it to the audit queue as a
// persistent message.
func (p *AuditPublisher) Publish(event ProtectionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx,
		"",         // default exchange
		auditQueue, // routing key = queue name
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // survive broker restart
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("audit: failed to publish event: %w", err)
	}
	return nil
}

// Close releases the publish channel and the underlying connection.
func (p *AuditPublisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// publishAudit records one protection outcome. With no broker configured the
// outcome is logged only (dev mode).
func (app *App) publishAudit(repo, branch string, outcome protectionOutcome) {
	if app.audit == nil {
		log.Printf("[Audit] %s@%s %s (no broker configured, logged only)\n", repo, branch, outcome)
		return
	}

	event := ProtectionEvent{
		ID:        uuid.New().String(),
		Repo:      repo,
		Branch:    branch,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
	if err := app.audit.Publish(event); err != nil {
		log.Printf("[Audit] Warning: could not publish event for %s: %v\n", repo, err)
	}
}
