package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// Platform is the closed set of publish targets. Raw strings coming from
// the command parser must go through ParsePlatform before entering a draft.
type Platform string

const (
	PlatformTelegram  Platform = "telegram"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
)

// KnownPlatforms lists every supported platform in display order.
func KnownPlatforms() []Platform {
	return []Platform{PlatformTelegram, PlatformTwitter, PlatformInstagram}
}

// ParsePlatform validates a raw platform identifier.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformTelegram, PlatformTwitter, PlatformInstagram:
		return Platform(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// Capabilities describes what a platform supports, keyed by the closed
// Platform enum rather than raw strings.
type Capabilities struct {
	CanAutoPost    bool
	CanManualShare bool
	RequiresMedia  bool
	SupportsVideo  bool
	MaxTextLen     int
}

var platformCapabilities = map[Platform]Capabilities{
	PlatformTelegram: {
		CanAutoPost:    true,
		CanManualShare: true,
		SupportsVideo:  true,
		MaxTextLen:     4096,
	},
	PlatformTwitter: {
		CanAutoPost:    true,
		CanManualShare: true,
		SupportsVideo:  true,
		MaxTextLen:     280,
	},
	PlatformInstagram: {
		CanAutoPost:    true,
		CanManualShare: true,
		RequiresMedia:  true,
		SupportsVideo:  true,
		MaxTextLen:     2200,
	},
}

// CapabilitiesOf returns the capability table entry for p.
func CapabilitiesOf(p Platform) Capabilities {
	return platformCapabilities[p]
}
