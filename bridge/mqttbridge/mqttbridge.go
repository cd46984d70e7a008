// Package mqttbridge publishes tag lifecycle events to an MQTT broker.
// Grounded on teacher's mqtt.Publisher (mqtt/publisher.go): connect-
// with-retry client options, a JSON tag message per publish, and a
// Manager-less single-broker Bridge since this module has one registry
// per process rather than teacher's many-PLC fan-out. The inbound
// write-request/response half of teacher's Publisher (subscribeWriteTopics,
// handleWriteMessage, the bounded writeJob worker pool) is out of scope:
// the domain-stack role given to this dependency is publishing the four
// terminal tag events, not a write-back control channel.
package mqttbridge

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"plctag"
)

// Config is the broker connection and topic configuration for one
// Bridge.
type Config struct {
	Broker    string
	Port      int
	ClientID  string
	Username  string
	Password  string
	UseTLS    bool
	RootTopic string // default "plctag" if empty
}

func (c Config) rootTopic() string {
	if c.RootTopic == "" {
		return "plctag"
	}
	return c.RootTopic
}

// eventMessage is the JSON payload published for each observed event.
type eventMessage struct {
	PLC       string `json:"plc"`
	Tag       string `json:"tag"`
	Event     string `json:"event"`
	Status    string `json:"status"`
	Value     any    `json:"value,omitempty"`
	Type      string `json:"type,omitempty"`
	Timestamp string `json:"timestamp"`
}

// publishedKinds is the C6 event subset this bridge forwards; CREATED,
// READ_STARTED, and WRITE_STARTED are purely in-process bookkeeping
// with nothing externally interesting to report.
var publishedKinds = map[plctag.EventKind]bool{
	plctag.EventReadCompleted:  true,
	plctag.EventWriteCompleted: true,
	plctag.EventAborted:        true,
	plctag.EventDestroyed:      true,
}

// Bridge connects to one MQTT broker and publishes tag events drained
// through its HandleEvent callback.
type Bridge struct {
	cfg Config
	reg *plctag.Registry

	mu      sync.RWMutex
	client  pahomqtt.Client
	running bool
}

// New builds a bridge over reg; call Start to connect.
func New(cfg Config, reg *plctag.Registry) *Bridge {
	return &Bridge{cfg: cfg, reg: reg}
}

// IsRunning reports whether the bridge is currently connected.
func (b *Bridge) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Start connects to the broker. Safe to call once; a second call while
// already running is a no-op.
func (b *Bridge) Start() error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if running {
		return nil
	}

	opts := pahomqtt.NewClientOptions()
	if b.cfg.UseTLS {
		opts.AddBroker(fmt.Sprintf("ssl://%s:%d", b.cfg.Broker, b.cfg.Port))
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		opts.AddBroker(fmt.Sprintf("tcp://%s:%d", b.cfg.Broker, b.cfg.Port))
	}
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqttbridge: connect timeout to %s:%d", b.cfg.Broker, b.cfg.Port)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttbridge: connect: %w", err)
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	b.client = client
	b.running = true
	b.mu.Unlock()
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	client := b.client
	b.client = nil
	b.running = false
	b.mu.Unlock()

	if client != nil {
		client.Disconnect(500)
	}
}

// HandleEvent is a plctag.Callback: wire it up via tag.SetCallback, or
// chain it alongside other callbacks with plctag.ChainCallbacks.
func (b *Bridge) HandleEvent(tagID uint32, event plctag.EventKind, status plctag.OperationState, _ any) {
	if !publishedKinds[event] {
		return
	}

	b.mu.RLock()
	client := b.client
	running := b.running
	rootTopic := b.cfg.rootTopic()
	b.mu.RUnlock()
	if !running || client == nil {
		return
	}

	t, err := b.reg.Lookup(tagID)
	if err != nil {
		return
	}

	msg := eventMessage{
		PLC:       t.Gateway(),
		Tag:       t.Name(),
		Event:     event.String(),
		Status:    status.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if event == plctag.EventReadCompleted || event == plctag.EventWriteCompleted {
		msg.Value, msg.Type = t.ExportValue()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	topic := fmt.Sprintf("%s/%s/tags/%s/%s", rootTopic, msg.PLC, msg.Tag, msg.Event)
	token := client.Publish(topic, 1, false, payload)
	token.WaitTimeout(2 * time.Second)
}
