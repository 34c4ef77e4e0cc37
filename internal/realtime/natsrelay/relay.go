// Package natsrelay shares session snapshots between server instances over
// NATS, so observers attached to any instance see every commit.
package natsrelay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/mcoot/estimategame/internal/model"
)

const (
	subjectPrefix = "estgame.session."
	subjectSuffix = ".state"
	// SubjectWildcard matches the state subject of every session
	SubjectWildcard = subjectPrefix + "*" + subjectSuffix

	originHeader = "Estgame-Origin"
)

// Subject returns the subject snapshots of a session are published on
func Subject(id model.SessionID) string {
	return subjectPrefix + string(id) + subjectSuffix
}

// Conn is the part of *nats.Conn the relay uses
type Conn interface {
	PublishMsg(msg *nats.Msg) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Publisher receives snapshots for local delivery
type Publisher interface {
	Publish(snapshot model.Snapshot)
}

// Config holds NATS connection settings
type Config struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default NATS configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with reconnect handling that logs through logger
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("estgame"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("nats error", slog.Any("error", err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Relay publishes every local snapshot to NATS and feeds snapshots from
// other instances into the local publisher. Echoes of its own messages are
// ignored, and any duplicate that slips through is dropped by the hub's
// version check.
type Relay struct {
	conn   Conn
	local  Publisher
	origin string
	logger *slog.Logger
	sub    *nats.Subscription
}

// New creates a relay in front of the local publisher
func New(conn Conn, local Publisher, logger *slog.Logger) *Relay {
	return &Relay{
		conn:   conn,
		local:  local,
		origin: uuid.NewString(),
		logger: logger.With(slog.String("component", "natsrelay")),
	}
}

// Start subscribes to snapshots from other instances
func (r *Relay) Start() error {
	sub, err := r.conn.Subscribe(SubjectWildcard, r.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectWildcard, err)
	}
	r.sub = sub
	r.logger.Info("relay started", slog.String("subject", SubjectWildcard))
	return nil
}

// Publish delivers locally, then shares the snapshot with other instances.
// A NATS failure is logged; local observers are unaffected and remote ones
// resync on reconnect.
func (r *Relay) Publish(snapshot model.Snapshot) {
	r.local.Publish(snapshot)

	data, err := json.Marshal(snapshot)
	if err != nil {
		r.logger.Error("failed to encode snapshot", slog.Any("error", err))
		return
	}
	msg := nats.NewMsg(Subject(snapshot.SessionID))
	msg.Header.Set(originHeader, r.origin)
	msg.Data = data
	if err := r.conn.PublishMsg(msg); err != nil {
		r.logger.Warn("failed to relay snapshot",
			slog.String("session_id", string(snapshot.SessionID)),
			slog.Int64("version", snapshot.Version),
			slog.Any("error", err))
	}
}

func (r *Relay) handle(msg *nats.Msg) {
	if msg.Header.Get(originHeader) == r.origin {
		return
	}
	var snapshot model.Snapshot
	if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
		r.logger.Warn("discarding malformed snapshot",
			slog.String("subject", msg.Subject),
			slog.Any("error", err))
		return
	}
	if Subject(snapshot.SessionID) != msg.Subject || !strings.HasPrefix(msg.Subject, subjectPrefix) {
		r.logger.Warn("discarding snapshot on mismatched subject", slog.String("subject", msg.Subject))
		return
	}
	r.local.Publish(snapshot)
}

// Close stops receiving snapshots from other instances
func (r *Relay) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}
