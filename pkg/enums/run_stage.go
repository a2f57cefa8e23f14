package enums

import "fmt"

// RunStage is the pipeline stage a production run is currently executing.
type RunStage string

const (
	RunStageIdle   RunStage = "idle"
	RunStageVideo  RunStage = "video"
	RunStageAudio  RunStage = "audio"
	RunStageSync   RunStage = "sync"
	RunStageMixing RunStage = "mixing"
)

var validRunStages = []RunStage{
	RunStageIdle,
	RunStageVideo,
	RunStageAudio,
	RunStageSync,
	RunStageMixing,
}

// String implements fmt.Stringer.
func (r RunStage) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RunStage.
func (r RunStage) IsValid() bool {
	for _, candidate := range validRunStages {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRunStage converts the raw string to RunStage.
func ParseRunStage(value string) (RunStage, error) {
	for _, candidate := range validRunStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid run stage %q", value)
}
