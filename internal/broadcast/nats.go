package broadcast

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink republishes alert topics as NATS subjects for out-of-process
// subscribers.
type NATSSink struct {
	nc *nats.Conn
}

func ConnectNATS(url string) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("netwatch-alerts"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSSink{nc: nc}, nil
}

func (s *NATSSink) Send(topic string, payload []byte) error {
	if err := s.nc.Publish(Subject(topic), payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (s *NATSSink) Close() {
	if s == nil || s.nc == nil {
		return
	}
	_ = s.nc.Drain()
}

// Subject maps "/topic/alerts/connection" to "alerts.connection".
func Subject(topic string) string {
	trimmed := strings.Trim(strings.TrimPrefix(topic, "/topic/"), "/")
	return strings.ReplaceAll(trimmed, "/", ".")
}
