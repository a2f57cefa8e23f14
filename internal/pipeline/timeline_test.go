package pipeline

import (
	"testing"

	"github.com/dramaforge/dramaforge-backend/pkg/db/models"
)

func intPtr(v int) *int { return &v }

func TestAssignTimelineAccumulatesOffsets(t *testing.T) {
	clips := []models.AudioClip{
		{SceneNumber: intPtr(1), Duration: 4},
		{SceneNumber: intPtr(2), Duration: 6},
		{SceneNumber: intPtr(3), Duration: 5},
	}

	out := AssignTimeline(clips)
	wants := []struct{ start, end float64 }{
		{0, 4},
		{4, 10},
		{10, 15},
	}
	for i, want := range wants {
		if out[i].StartTime == nil || out[i].EndTime == nil {
			t.Fatalf("clip %d missing offsets", i)
		}
		if *out[i].StartTime != want.start || *out[i].EndTime != want.end {
			t.Fatalf("clip %d expected [%v,%v] got [%v,%v]", i, want.start, want.end, *out[i].StartTime, *out[i].EndTime)
		}
	}
}

func TestAssignTimelineSortsBySceneNumber(t *testing.T) {
	clips := []models.AudioClip{
		{SceneNumber: intPtr(3), Duration: 2, DialogueText: "third"},
		{SceneNumber: intPtr(1), Duration: 3, DialogueText: "first"},
		{SceneNumber: intPtr(2), Duration: 1, DialogueText: "second"},
	}

	out := AssignTimeline(clips)
	if out[0].DialogueText != "first" || out[1].DialogueText != "second" || out[2].DialogueText != "third" {
		t.Fatalf("clips not ordered by scene: %+v", out)
	}
	if *out[0].StartTime != 0 || *out[1].StartTime != 3 || *out[2].StartTime != 4 {
		t.Fatalf("offsets not cumulative after sort: %v %v %v", *out[0].StartTime, *out[1].StartTime, *out[2].StartTime)
	}
}

func TestAssignTimelineUnnumberedClipsGoLast(t *testing.T) {
	clips := []models.AudioClip{
		{Duration: 2, DialogueText: "loose"},
		{SceneNumber: intPtr(1), Duration: 5, DialogueText: "scene one"},
	}

	out := AssignTimeline(clips)
	if out[0].DialogueText != "scene one" {
		t.Fatalf("numbered clip should come first, got %s", out[0].DialogueText)
	}
	if *out[1].StartTime != 5 || *out[1].EndTime != 7 {
		t.Fatalf("loose clip offsets wrong: [%v,%v]", *out[1].StartTime, *out[1].EndTime)
	}
}

func TestAssignTimelineDoesNotMutateInput(t *testing.T) {
	clips := []models.AudioClip{{SceneNumber: intPtr(1), Duration: 4}}
	_ = AssignTimeline(clips)
	if clips[0].StartTime != nil {
		t.Fatal("input slice must not be mutated")
	}
}
