package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dramaforge/dramaforge-backend/api/responses"
	"github.com/dramaforge/dramaforge-backend/api/validators"
	"github.com/dramaforge/dramaforge-backend/internal/audioclips"
	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
	"github.com/dramaforge/dramaforge-backend/pkg/logger"
)

// AudioGenerate synthesizes a standalone voice-over clip.
func AudioGenerate(svc audioclips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audio service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body struct {
			ProjectID     *uuid.UUID `json:"project_id,omitempty"`
			ScriptID      *uuid.UUID `json:"script_id,omitempty"`
			SceneNumber   *int       `json:"scene_number,omitempty" validate:"omitempty,min=1"`
			Text          string     `json:"text" validate:"required,min=1,max=5000"`
			VoiceID       string     `json:"voice_id,omitempty"`
			Provider      string     `json:"provider,omitempty" validate:"omitempty,oneof=openai elevenlabs"`
			CharacterName *string    `json:"character_name,omitempty"`
		}
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		clip, err := svc.Generate(r.Context(), audioclips.GenerateAudioInput{
			UserID:        userID,
			Tier:          requestTier(r),
			ProjectID:     body.ProjectID,
			ScriptID:      body.ScriptID,
			SceneNumber:   body.SceneNumber,
			Text:          body.Text,
			VoiceID:       body.VoiceID,
			Provider:      body.Provider,
			CharacterName: body.CharacterName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"audio_clip": clip})
	}
}

// AudioList returns the caller's clips, optionally scoped to a project.
func AudioList(svc audioclips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audio service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var projectID *uuid.UUID
		if raw := r.URL.Query().Get("project_id"); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project_id"))
				return
			}
			projectID = &parsed
		}

		list, err := svc.List(r.Context(), userID, projectID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"audio_clips": list})
	}
}

func AudioGet(svc audioclips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audio service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clipID, err := pathUUID(r, "clipId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		clip, err := svc.Get(r.Context(), userID, clipID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"audio_clip": clip})
	}
}

// AudioToggleFavorite flips the favorite flag on a clip.
func AudioToggleFavorite(svc audioclips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audio service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clipID, err := pathUUID(r, "clipId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		clip, err := svc.ToggleFavorite(r.Context(), userID, clipID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"audio_clip": clip})
	}
}

// AudioReuse records one more reuse of an existing clip. No credits
// are charged.
func AudioReuse(svc audioclips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audio service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clipID, err := pathUUID(r, "clipId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		clip, err := svc.Reuse(r.Context(), userID, clipID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"audio_clip": clip})
	}
}

func AudioDelete(svc audioclips.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audio service unavailable"))
			return
		}

		userID, err := requestUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clipID, err := pathUUID(r, "clipId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, clipID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
