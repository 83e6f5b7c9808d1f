package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher pushes telemetry reports off the node. The agent runs fine
// without one; telemetry then stays local-only.
type Publisher interface {
	Publish(report Report) error
	Close()
}

// NatsPublisher publishes telemetry reports to a NATS subject.
type NatsPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewNatsPublisher connects to the given NATS URL. The connection reconnects
// on its own; a failed publish during an outage is just a lost report.
func NewNatsPublisher(url, subject string, logger *zap.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(
		url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(3*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("Telemetry NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Telemetry NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	logger.Info("Telemetry publisher connected", zap.String("url", url), zap.String("subject", subject))
	return &NatsPublisher{nc: nc, subject: subject, logger: logger}, nil
}

func (p *NatsPublisher) Publish(report Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry report: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish telemetry report: %w", err)
	}
	return nil
}

func (p *NatsPublisher) Close() {
	p.nc.Close()
}
