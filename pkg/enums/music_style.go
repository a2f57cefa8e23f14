package enums

import "fmt"

// MusicStyle is the background music mood mixed into the final cut.
type MusicStyle string

const (
	MusicStyleSuspense MusicStyle = "suspense"
	MusicStyleRomantic MusicStyle = "romantic"
	MusicStyleUpbeat   MusicStyle = "upbeat"
	MusicStyleDramatic MusicStyle = "dramatic"
)

var validMusicStyles = []MusicStyle{
	MusicStyleSuspense,
	MusicStyleRomantic,
	MusicStyleUpbeat,
	MusicStyleDramatic,
}

// String implements fmt.Stringer.
func (m MusicStyle) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MusicStyle.
func (m MusicStyle) IsValid() bool {
	for _, candidate := range validMusicStyles {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMusicStyle converts the raw string to MusicStyle.
func ParseMusicStyle(value string) (MusicStyle, error) {
	for _, candidate := range validMusicStyles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid music style %q", value)
}
