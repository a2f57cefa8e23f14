package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dramaforge/dramaforge-backend/api/responses"
	"github.com/dramaforge/dramaforge-backend/api/validators"
	"github.com/dramaforge/dramaforge-backend/internal/pipeline"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

const defaultRunLimit = 20

var runUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProductionStart kicks off a full pipeline run for a project. The run
// is enqueued; progress is available via GET /runs/{runId} or the
// websocket stream.
func ProductionStart(svc pipeline.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pipeline service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := pathUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body pipeline.RunOptions
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		run, err := svc.StartRun(r.Context(), pipeline.StartRunInput{
			UserID:    userID,
			ProjectID: projectID,
			Options:   body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"run": run})
	}
}

// RunGet returns one production run snapshot.
func RunGet(svc pipeline.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pipeline service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		run, err := svc.GetRun(r.Context(), userID, runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"run": run})
	}
}

// RunList lists a project's runs, newest first.
func RunList(svc pipeline.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pipeline service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := pathUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := queryLimit(r, defaultRunLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		runs, err := svc.ListRuns(r.Context(), userID, projectID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"runs": runs})
	}
}

// RunEvents streams run progress over a websocket. The current snapshot
// is sent first, then every persisted state change until the run
// reaches a terminal status or the client disconnects.
func RunEvents(svc pipeline.Service, hub *pipeline.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pipeline service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Ownership check before the upgrade; a foreign run id reads
		// as not found.
		run, err := svc.GetRun(r.Context(), userID, runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, err := runUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the handshake failure.
			return
		}
		defer conn.Close()

		events, cancel := hub.Subscribe(runID)
		defer cancel()

		snapshot := pipeline.RunEvent{
			RunID:           run.ID,
			ProjectID:       run.ProjectID,
			Stage:           run.Stage,
			Status:          run.Status,
			StatusMessage:   run.StatusMessage,
			WorkingVideoURL: run.WorkingVideoURL,
			FinalVideoURL:   run.FinalVideoURL,
			Error:           run.ErrorMessage,
			FailureNotes:    []string(run.FailureNotes),
		}
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
		if run.Status.Terminal() {
			return
		}

		// Reader goroutine surfaces client disconnects.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					return
				}
				if event.Status.Terminal() {
					return
				}
			}
		}
	}
}

// SceneClipGenerate regenerates a single scene's video clip outside of
// a full run.
func SceneClipGenerate(svc pipeline.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pipeline service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		projectID, err := pathUUID(r, "projectId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sceneNumber, err := strconv.Atoi(chi.URLParam(r, "sceneNumber"))
		if err != nil || sceneNumber <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid scene number"))
			return
		}

		job, err := svc.GenerateSceneClip(r.Context(), pipeline.SceneClipInput{
			UserID:      userID,
			ProjectID:   projectID,
			SceneNumber: sceneNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"job": job})
	}
}
