package providers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// parseScriptScenes decodes the scene list out of a model response. The
// models are inconsistent about the envelope: sometimes a bare array,
// sometimes {"scenes": [...]}, sometimes {"script": [...]}.
func parseScriptScenes(content []byte) ([]models.ScriptScene, error) {
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "empty script response")
	}

	var scenes []models.ScriptScene
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &scenes); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "decode script array")
		}
	} else {
		var envelope struct {
			Scenes []models.ScriptScene `json:"scenes"`
			Script []models.ScriptScene `json:"script"`
		}
		if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedResponse, err, "decode script envelope")
		}
		scenes = envelope.Scenes
		if len(scenes) == 0 {
			scenes = envelope.Script
		}
	}

	if len(scenes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeMalformedResponse, "script response contained no scenes")
	}

	return renumberScenes(scenes), nil
}

// renumberScenes orders scenes by their claimed numbers and rewrites them
// as a gapless 1..n sequence.
func renumberScenes(scenes []models.ScriptScene) []models.ScriptScene {
	sorted := make([]models.ScriptScene, len(scenes))
	copy(sorted, scenes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SceneNumber < sorted[j].SceneNumber
	})
	for i := range sorted {
		sorted[i].SceneNumber = i + 1
	}
	return sorted
}

// buildScriptPrompt renders the screenwriter instruction shared by the
// script providers.
func buildScriptPrompt(req ScriptRequest) string {
	var chars strings.Builder
	for _, c := range req.Characters {
		chars.WriteString(fmt.Sprintf("%s: %s\n", c.Name, c.Description))
	}

	platform := req.Platform
	if platform == "" {
		platform = "TikTok/Reels"
	}

	return fmt.Sprintf(`You are a professional screenwriter for %s short dramas.
Characters Available (Use these consistently):
%s
Task: Write a 45-60s script based on the logline: %q.
Requirements:
- 4-6 Scenes maximum.
- JSON Output Only.
- Fields:
  - scene_number (int)
  - description (Visual description for AI video generation, include character names and consistent appearance details)
  - dialogue (The spoken lines)
  - character_name (Which character is speaking/on screen)
  - duration (int, seconds)`, platform, chars.String(), req.Logline)
}
