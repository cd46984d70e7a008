// Package cachebridge backs a distributed read cache for tag values in
// Redis/Valkey, so several engine processes pointed at the same PLC
// identity can share freshly-read values instead of each polling the
// PLC independently. Grounded on teacher's valkey.Publisher/Manager
// (valkey/publisher.go, valkey/manager.go): a JSON tag message keyed by
// PLC/tag, written with an optional TTL. The write-back queue and
// Pub/Sub change-notification half of teacher's Publisher are out of
// scope: this bridge only ever writes on READ_COMPLETED and reads back
// on demand, it never turns a cache write into a PLC write.
package cachebridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"plctag"
)

// Config is the Redis/Valkey connection and key-namespacing
// configuration for one Bridge.
type Config struct {
	Address  string
	Password string
	Database int
	UseTLS   bool
	KeyTTL   time.Duration // 0 = no expiry
	Prefix   string        // default "plctag" if empty
}

func (c Config) prefix() string {
	if c.Prefix == "" {
		return "plctag"
	}
	return c.Prefix
}

// cacheEntry is the JSON value stored per tag key.
type cacheEntry struct {
	PLC       string `json:"plc"`
	Tag       string `json:"tag"`
	Value     any    `json:"value"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Bridge mirrors READ_COMPLETED tag values into Redis/Valkey.
type Bridge struct {
	cfg    Config
	reg    *plctag.Registry
	client *redis.Client
}

// New builds a bridge over reg; call Start to connect.
func New(cfg Config, reg *plctag.Registry) *Bridge {
	return &Bridge{cfg: cfg, reg: reg}
}

// Start connects to the Redis/Valkey server.
func (b *Bridge) Start() error {
	opts := &redis.Options{
		Addr:         b.cfg.Address,
		Password:     b.cfg.Password,
		DB:           b.cfg.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if b.cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cachebridge: connect: %w", err)
	}
	b.client = client
	return nil
}

// Stop closes the Redis/Valkey connection.
func (b *Bridge) Stop() {
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
}

func (b *Bridge) key(plcName, tagName string) string {
	return fmt.Sprintf("%s:%s:%s", b.cfg.prefix(), plcName, tagName)
}

// HandleEvent is a plctag.Callback: wire it up via tag.SetCallback, or
// chain it alongside other callbacks with plctag.ChainCallbacks. Only
// READ_COMPLETED refreshes the cache; a failed read leaves the last
// good value in place rather than overwriting it with garbage.
func (b *Bridge) HandleEvent(tagID uint32, event plctag.EventKind, status plctag.OperationState, _ any) {
	if event != plctag.EventReadCompleted || status != plctag.StatusOK || b.client == nil {
		return
	}

	t, err := b.reg.Lookup(tagID)
	if err != nil {
		return
	}
	value, typeName := t.ExportValue()
	entry := cacheEntry{
		PLC:       t.Gateway(),
		Tag:       t.Name(),
		Value:     value,
		Type:      typeName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.client.Set(ctx, b.key(entry.PLC, entry.Tag), payload, b.cfg.KeyTTL)
}

// Get reads back the last cached value for plcName/tagName, for a
// caller in another process that wants a tag's value without its own
// PLC connection. ok is false if nothing has been cached yet (or it
// expired).
func (b *Bridge) Get(plcName, tagName string) (value any, typeName string, ok bool, err error) {
	if b.client == nil {
		return nil, "", false, fmt.Errorf("cachebridge: not started")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := b.client.Get(ctx, b.key(plcName, tagName)).Bytes()
	if err == redis.Nil {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, "", false, err
	}
	return entry.Value, entry.Type, true, nil
}
