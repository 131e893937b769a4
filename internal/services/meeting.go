// Package services – meeting URL classification.
//
// This file resolves a meeting URL into a platform and picks the
// transcription provider for a new default recording. Both resolvers are
// pure functions; platform support grows by extending the host table.
package services

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

// MeetingPlatform identifies the conferencing product a URL belongs to.
type MeetingPlatform string

const (
	PlatformZoom       MeetingPlatform = "zoom"
	PlatformGoogleMeet MeetingPlatform = "google_meet"
	PlatformTeams      MeetingPlatform = "teams"
	PlatformUnknown    MeetingPlatform = "unknown"
)

// PlatformFromURL classifies a meeting URL by host suffix. Malformed URLs
// and unrecognized hosts yield PlatformUnknown; the caller decides whether
// that is an error.
func PlatformFromURL(meetingURL string) MeetingPlatform {
	u, err := url.Parse(meetingURL)
	if err != nil || u.Host == "" {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "zoom.us" || strings.HasSuffix(host, ".zoom.us"):
		return PlatformZoom
	case host == "meet.google.com":
		return PlatformGoogleMeet
	case host == "teams.microsoft.com" || host == "teams.live.com":
		return PlatformTeams
	default:
		return PlatformUnknown
	}
}

// ProviderForMeeting resolves the transcription provider for a new default
// recording. An explicit, known provider in the transcription settings wins;
// otherwise the platform default applies (Deepgram everywhere except Google
// Meet, which defaults to Gladia).
func ProviderForMeeting(meetingURL string, ts domain.TranscriptionSettings) domain.TranscriptionProvider {
	switch ts.Provider {
	case domain.ProviderDeepgram, domain.ProviderGladia, domain.ProviderOpenAI:
		return ts.Provider
	}
	if PlatformFromURL(meetingURL) == PlatformGoogleMeet {
		return domain.ProviderGladia
	}
	return domain.ProviderDeepgram
}

// titleCaser renders platform identifiers as display words ("google_meet"
// becomes "Google Meet").
var titleCaser = cases.Title(language.English)

// DefaultBotName derives the in-meeting display name used when the creation
// request does not supply one.
func DefaultBotName(platform MeetingPlatform) string {
	if platform == PlatformUnknown {
		return "Meeting Notetaker"
	}
	words := strings.ReplaceAll(string(platform), "_", " ")
	return titleCaser.String(words) + " Notetaker"
}
