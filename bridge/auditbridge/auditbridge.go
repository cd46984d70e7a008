// Package auditbridge writes a best-effort audit record of every
// WRITE_COMPLETED tag event to a Kafka topic. Grounded on teacher's
// kafka.Producer (kafka/producer.go): a topic-keyed kafka.Writer pool,
// LeastBytes balancing, synchronous WriteMessages for delivery
// confirmation, configurable RequiredAcks/MaxAttempts. The multi-
// cluster Manager, consumer, and SASL/TLS transport machinery
// (kafka/manager.go, kafka/consumer.go, createTransport) are out of
// scope: this bridge never reads from Kafka and only ever talks to one
// cluster, since an audit log has no reason to fan out to several
// brokers the way teacher's operator-facing integrations do. A failed
// produce is logged and dropped rather than retried indefinitely,
// matching "best-effort" from the domain-stack role.
package auditbridge

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"plctag"
)

// Config is the cluster and topic configuration for one Bridge.
type Config struct {
	Brokers      []string
	Topic        string
	RequiredAcks int // kafka.RequireNone/RequireOne/RequireAll
	MaxAttempts  int
}

// auditRecord is the JSON message produced per audited write.
type auditRecord struct {
	PLC       string `json:"plc"`
	Tag       string `json:"tag"`
	Value     any    `json:"value"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Bridge writes an audit record to Kafka for every completed tag write,
// successful or not.
type Bridge struct {
	cfg    Config
	reg    *plctag.Registry
	writer *kafka.Writer
}

// New builds a bridge over reg; call Start before wiring it into any
// tag's callback.
func New(cfg Config, reg *plctag.Registry) *Bridge {
	return &Bridge{cfg: cfg, reg: reg}
}

// Start opens the Kafka writer. Connectivity is only proven on first
// produce; kafka-go writers dial lazily.
func (b *Bridge) Start() error {
	acks := kafka.RequiredAcks(b.cfg.RequiredAcks)
	maxAttempts := b.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	b.writer = &kafka.Writer{
		Addr:         kafka.TCP(b.cfg.Brokers...),
		Topic:        b.cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: acks,
		MaxAttempts:  maxAttempts,
		Async:        false,
		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 10 * time.Millisecond,
	}
	return nil
}

// Stop flushes and closes the Kafka writer.
func (b *Bridge) Stop() {
	if b.writer != nil {
		b.writer.Close()
		b.writer = nil
	}
}

// HandleEvent is a plctag.Callback: wire it up via tag.SetCallback, or
// chain it alongside other callbacks with plctag.ChainCallbacks. Only
// WRITE_COMPLETED is audited, successful or not, so a rejected write
// still leaves a trace.
func (b *Bridge) HandleEvent(tagID uint32, event plctag.EventKind, status plctag.OperationState, _ any) {
	if event != plctag.EventWriteCompleted || b.writer == nil {
		return
	}

	t, err := b.reg.Lookup(tagID)
	if err != nil {
		return
	}
	value, typeName := t.ExportValue()
	rec := auditRecord{
		PLC:       t.Gateway(),
		Tag:       t.Name(),
		Value:     value,
		Type:      typeName,
		Status:    status.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := []byte(rec.PLC + "/" + rec.Tag)
	if err := b.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: payload, Time: time.Now()}); err != nil {
		log.Printf("auditbridge: produce to %s failed: %v", b.cfg.Topic, err)
	}
}
