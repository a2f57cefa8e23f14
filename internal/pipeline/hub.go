package pipeline

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
	"github.com/dramaforge/dramaforge-backend/pkg/enums"
)

// RunEvent is the wire shape pushed to run progress subscribers.
type RunEvent struct {
	RunID           uuid.UUID       `json:"run_id"`
	ProjectID       uuid.UUID       `json:"project_id"`
	Stage           enums.RunStage  `json:"stage"`
	Status          enums.RunStatus `json:"status"`
	StatusMessage   string          `json:"status_message"`
	WorkingVideoURL *string         `json:"working_video_url,omitempty"`
	FinalVideoURL   *string         `json:"final_video_url,omitempty"`
	Error           *string         `json:"error,omitempty"`
	FailureNotes    []string        `json:"failure_notes,omitempty"`
}

// Hub fans run state changes out to live progress subscribers. Slow
// subscribers drop events rather than stalling the pipeline.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[chan RunEvent]struct{}
}

// NewHub returns an empty progress hub.
func NewHub() *Hub {
	return &Hub{subscribers: map[uuid.UUID]map[chan RunEvent]struct{}{}}
}

func eventFromRun(run *models.ProductionRun) RunEvent {
	return RunEvent{
		RunID:           run.ID,
		ProjectID:       run.ProjectID,
		Stage:           run.Stage,
		Status:          run.Status,
		StatusMessage:   run.StatusMessage,
		WorkingVideoURL: run.WorkingVideoURL,
		FinalVideoURL:   run.FinalVideoURL,
		Error:           run.ErrorMessage,
		FailureNotes:    run.FailureNotes,
	}
}

// NotifyRunUpdate implements RunNotifier.
func (h *Hub) NotifyRunUpdate(run *models.ProductionRun) {
	h.Dispatch(eventFromRun(run))
}

// Dispatch fans a single event out to that run's subscribers. Events
// relayed from other processes enter the hub here.
func (h *Hub) Dispatch(event RunEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[event.RunID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener for one run. The returned cancel func
// must be called when the listener goes away.
func (h *Hub) Subscribe(runID uuid.UUID) (<-chan RunEvent, func()) {
	ch := make(chan RunEvent, 16)

	h.mu.Lock()
	if h.subscribers[runID] == nil {
		h.subscribers[runID] = map[chan RunEvent]struct{}{}
	}
	h.subscribers[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subscribers[runID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subscribers, runID)
			}
		}
	}
	return ch, cancel
}
