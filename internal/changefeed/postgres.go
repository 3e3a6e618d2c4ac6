package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"minuteride/internal/observability"
)

const pingInterval = 90 * time.Second

// PostgresFeed listens on a NOTIFY channel fed by the jobs table trigger.
type PostgresFeed struct {
	*Broker
	listener *pq.Listener
	channel  string
	logger   *slog.Logger
}

// NewPostgresFeed opens a dedicated LISTEN connection. The connection is
// re-established by lib/pq between minReconnect and maxReconnect.
func NewPostgresFeed(dsn, channel string, minReconnect, maxReconnect time.Duration, logger *slog.Logger) (*PostgresFeed, error) {
	f := &PostgresFeed{
		Broker:  NewBroker(),
		channel: channel,
		logger:  logger,
	}

	f.listener = pq.NewListener(dsn, minReconnect, maxReconnect, f.onListenerEvent)
	if err := f.listener.Listen(channel); err != nil {
		_ = f.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	return f, nil
}

func (f *PostgresFeed) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		f.logger.Info("change feed connected", "channel", f.channel)
	case pq.ListenerEventDisconnected:
		f.logger.Warn("change feed disconnected", "channel", f.channel, "error", err)
	case pq.ListenerEventReconnected:
		f.logger.Info("change feed reconnected", "channel", f.channel)
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Error("change feed connection attempt failed", "channel", f.channel, "error", err)
	}
}

// Run delivers notifications until ctx is done.
func (f *PostgresFeed) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case n := <-f.listener.Notify:
			// nil after a reconnect: notifications may have been missed, so
			// subscribers get a synthetic update to trigger a full refresh.
			if n == nil {
				f.Publish(ctx, Event{Op: OpUpdate})
				continue
			}

			ev, err := decodeEvent(n.Extra)
			if err != nil {
				f.logger.Error("change feed payload rejected", "payload", n.Extra, "error", err)
				continue
			}
			observability.ChangeEventsTotal.WithLabelValues(string(ev.Op)).Inc()
			f.Publish(ctx, ev)

		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.logger.Warn("change feed ping failed", "error", err)
				}
			}()
		}
	}
}

// Close releases the LISTEN connection.
func (f *PostgresFeed) Close() error {
	return f.listener.Close()
}

func decodeEvent(payload string) (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, err
	}
	if ev.Op == "" {
		return Event{}, fmt.Errorf("missing op")
	}
	return ev, nil
}
