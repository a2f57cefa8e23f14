package enums

import "fmt"

// Platform is the distribution target a project is authored for.
type Platform string

const (
	PlatformTikTok Platform = "TikTok"
	PlatformReels  Platform = "Reels"
	PlatformShorts Platform = "Shorts"
)

var validPlatforms = []Platform{
	PlatformTikTok,
	PlatformReels,
	PlatformShorts,
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Platform.
func (p Platform) IsValid() bool {
	for _, candidate := range validPlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlatform converts the raw string to Platform.
func ParsePlatform(value string) (Platform, error) {
	for _, candidate := range validPlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform %q", value)
}
