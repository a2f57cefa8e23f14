package pipeline

import (
	"context"
	"encoding/json"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

// RunEventsTopic names the pub/sub topic carrying run progress events
// between the worker and API processes.
const RunEventsTopic = "runs"

type eventPublisher interface {
	EventsChannel(topic string) string
	Publish(ctx context.Context, channel string, payload []byte) error
}

type eventStream interface {
	EventsChannel(topic string) string
	SubscribeEvents(ctx context.Context, channel string) (<-chan string, func() error, error)
}

// Broadcaster implements RunNotifier by publishing run snapshots onto a
// shared Redis channel. Websocket subscribers attach to the API's local
// hub, which a relay feeds from the same channel, so progress survives
// the process boundary between the worker and the API.
type Broadcaster struct {
	pub  eventPublisher
	logg *logger.Logger
}

// NewBroadcaster wires a broadcaster over the shared event channel.
func NewBroadcaster(pub eventPublisher, logg *logger.Logger) *Broadcaster {
	return &Broadcaster{pub: pub, logg: logg}
}

// NotifyRunUpdate implements RunNotifier. Publish failures are logged
// and swallowed: progress fan-out never aborts a run.
func (b *Broadcaster) NotifyRunUpdate(run *models.ProductionRun) {
	payload, err := json.Marshal(eventFromRun(run))
	if err != nil {
		b.logg.Error(context.Background(), "marshal run event", err)
		return
	}
	channel := b.pub.EventsChannel(RunEventsTopic)
	if err := b.pub.Publish(context.Background(), channel, payload); err != nil {
		b.logg.Error(context.Background(), "publish run event", err)
	}
}

// RelayRunEvents subscribes to the shared run events channel and feeds
// each event into the local hub until ctx is cancelled or the stream
// closes. Malformed payloads are dropped.
func RelayRunEvents(ctx context.Context, stream eventStream, hub *Hub, logg *logger.Logger) error {
	payloads, closeSub, err := stream.SubscribeEvents(ctx, stream.EventsChannel(RunEventsTopic))
	if err != nil {
		return err
	}
	defer func() {
		_ = closeSub()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-payloads:
			if !ok {
				return nil
			}
			var event RunEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				logg.Warn(ctx, "dropping malformed run event")
				continue
			}
			hub.Dispatch(event)
		}
	}
}
