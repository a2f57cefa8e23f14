package pipeline

import (
	"testing"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub()
	runID := uuid.New()
	projectID := uuid.New()

	first, cancelFirst := hub.Subscribe(runID)
	second, cancelSecond := hub.Subscribe(runID)
	defer cancelFirst()
	defer cancelSecond()

	hub.NotifyRunUpdate(&models.ProductionRun{
		ID:            runID,
		ProjectID:     projectID,
		Stage:         enums.RunStageVideo,
		Status:        enums.RunStatusRunning,
		StatusMessage: "Generating video with kling",
	})

	for _, ch := range []<-chan RunEvent{first, second} {
		select {
		case event := <-ch:
			if event.RunID != runID || event.Stage != enums.RunStageVideo {
				t.Fatalf("unexpected event: %+v", event)
			}
		default:
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestHubIgnoresOtherRuns(t *testing.T) {
	hub := NewHub()
	runID := uuid.New()

	ch, cancel := hub.Subscribe(runID)
	defer cancel()

	hub.NotifyRunUpdate(&models.ProductionRun{ID: uuid.New(), Status: enums.RunStatusRunning})

	select {
	case event := <-ch:
		t.Fatalf("received event for foreign run: %+v", event)
	default:
	}
}

func TestHubStopsAfterCancel(t *testing.T) {
	hub := NewHub()
	runID := uuid.New()

	ch, cancel := hub.Subscribe(runID)
	cancel()

	hub.NotifyRunUpdate(&models.ProductionRun{ID: runID, Status: enums.RunStatusRunning})

	select {
	case event := <-ch:
		t.Fatalf("cancelled subscriber still receives: %+v", event)
	default:
	}
}

func TestHubDropsWhenSubscriberIsSlow(t *testing.T) {
	hub := NewHub()
	runID := uuid.New()

	ch, cancel := hub.Subscribe(runID)
	defer cancel()

	// Overrun the buffer; the hub must not block.
	for i := 0; i < 40; i++ {
		hub.NotifyRunUpdate(&models.ProductionRun{ID: runID, Status: enums.RunStatusRunning})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected a full buffer, got %d of %d", len(ch), cap(ch))
	}
}
