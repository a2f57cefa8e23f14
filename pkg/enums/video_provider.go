package enums

import "fmt"

// VideoProvider selects the clip generation backend.
type VideoProvider string

const (
	VideoProviderKling VideoProvider = "kling"
)

var validVideoProviders = []VideoProvider{
	VideoProviderKling,
}

// String implements fmt.Stringer.
func (v VideoProvider) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VideoProvider.
func (v VideoProvider) IsValid() bool {
	for _, candidate := range validVideoProviders {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVideoProvider converts the raw string to VideoProvider.
func ParseVideoProvider(value string) (VideoProvider, error) {
	for _, candidate := range validVideoProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid video provider %q", value)
}
