package model

import (
	"fmt"
	"strings"
)

// Platform identifies one of the supported analytics providers.
type Platform string

const (
	PlatformGoogleAnalytics Platform = "google_analytics"
	PlatformSearchConsole   Platform = "search_console"
	PlatformYouTube         Platform = "youtube"
	PlatformLinkedIn        Platform = "linkedin"
)

// AllPlatforms returns the providers in stable report order.
func AllPlatforms() []Platform {
	return []Platform{PlatformGoogleAnalytics, PlatformSearchConsole, PlatformYouTube, PlatformLinkedIn}
}

// ParsePlatform accepts both snake_case and camelCase spellings from the frontend.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google_analytics", "googleanalytics", "ga", "web":
		return PlatformGoogleAnalytics, nil
	case "search_console", "searchconsole", "gsc":
		return PlatformSearchConsole, nil
	case "youtube", "yt", "video":
		return PlatformYouTube, nil
	case "linkedin", "li":
		return PlatformLinkedIn, nil
	}
	return "", fmt.Errorf("unknown platform: %s", s)
}

// JSONKey is the field prefix used in the aggregated response payload.
func (p Platform) JSONKey() string {
	switch p {
	case PlatformGoogleAnalytics:
		return "googleAnalytics"
	case PlatformSearchConsole:
		return "searchConsole"
	case PlatformYouTube:
		return "youtube"
	case PlatformLinkedIn:
		return "linkedin"
	}
	return string(p)
}
