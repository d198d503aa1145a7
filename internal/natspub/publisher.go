// Package natspub publishes scheduled snapshots to a NATS subject.
//
// Publishing is optional: it activates only when nats_servers is
// configured. The agent stays fully functional without a broker - the
// recorder checks IsConnected before publishing, and the client
// reconnects in the background forever.
//
// Authentication uses NKeys (public-key signatures) when a seed is
// configured; unauthenticated brokers work without one.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"

	"github.com/doughall/hostpulse/internal/snapshot"
)

// Envelope wraps every published message with its type and timestamp.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher maintains the NATS connection and publishes snapshots.
type Publisher struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect establishes the NATS connection and returns a publisher
// addressing <prefix>.stats.<hostname>.
func Connect(servers, nkeySeed, subjectPrefix string, logger *slog.Logger) (*Publisher, error) {
	log := logger.With(slog.String("component", "natspub"))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	opts := []nats.Option{
		nats.Name("hostpulse-" + hostname),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.PingInterval(30 * time.Second),
		nats.MaxPingsOutstanding(3),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	if nkeySeed != "" {
		kp, err := nkeys.FromSeed([]byte(nkeySeed))
		if err != nil {
			return nil, fmt.Errorf("invalid nkey seed: %w", err)
		}
		pubKey, err := kp.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("derive nkey public key: %w", err)
		}
		opts = append(opts, nats.Nkey(pubKey, func(nonce []byte) ([]byte, error) {
			return kp.Sign(nonce)
		}))
	}

	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	p := &Publisher{
		nc:      nc,
		subject: fmt.Sprintf("%s.stats.%s", subjectPrefix, hostname),
		logger:  log,
	}
	log.Info("nats publisher connected",
		slog.String("url", nc.ConnectedUrl()),
		slog.String("subject", p.subject),
	)
	return p, nil
}

// PublishStats publishes one snapshot as a typed envelope.
func (p *Publisher) PublishStats(s *snapshot.Stats) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal stats payload: %w", err)
	}

	msg := Envelope{
		Type:      "stats",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish stats: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker is currently reachable.
func (p *Publisher) IsConnected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Shutdown drains buffered messages and closes the connection,
// honoring the context deadline.
func (p *Publisher) Shutdown(ctx context.Context) error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}

	// Drain completes asynchronously.
	for !p.nc.IsClosed() {
		select {
		case <-ctx.Done():
			p.nc.Close()
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	p.logger.Info("nats publisher closed")
	return nil
}
