package pipeline

import (
	"sort"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

// AssignTimeline orders clips by scene number and rewrites their
// start/end offsets as a cumulative timeline: each clip starts where
// the previous one ended, starting at zero. Clips without a scene
// number keep their given order after the numbered ones.
func AssignTimeline(clips []models.AudioClip) []models.AudioClip {
	ordered := make([]models.AudioClip, len(clips))
	copy(ordered, clips)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sceneOrder(ordered[i]) < sceneOrder(ordered[j])
	})

	offset := 0.0
	for i := range ordered {
		start := offset
		end := start + ordered[i].Duration
		ordered[i].StartTime = &start
		ordered[i].EndTime = &end
		offset = end
	}
	return ordered
}

func sceneOrder(clip models.AudioClip) int {
	if clip.SceneNumber == nil {
		return int(^uint(0) >> 1)
	}
	return *clip.SceneNumber
}
