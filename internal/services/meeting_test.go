package services

import (
	"testing"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

func TestPlatformFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want MeetingPlatform
	}{
		{"https://zoom.us/j/123456", PlatformZoom},
		{"https://us02web.zoom.us/j/123?pwd=abc", PlatformZoom},
		{"https://meet.google.com/abc-defg-hij", PlatformGoogleMeet},
		{"https://teams.microsoft.com/l/meetup-join/xyz", PlatformTeams},
		{"https://teams.live.com/meet/123", PlatformTeams},
		{"https://example.com/meeting", PlatformUnknown},
		{"not a url", PlatformUnknown},
		{"", PlatformUnknown},
	}
	for _, tc := range cases {
		if got := PlatformFromURL(tc.url); got != tc.want {
			t.Errorf("PlatformFromURL(%q) = %s; want %s", tc.url, got, tc.want)
		}
	}
}

func TestProviderForMeeting(t *testing.T) {
	// Explicit provider always wins.
	got := ProviderForMeeting("https://meet.google.com/abc",
		domain.TranscriptionSettings{Provider: domain.ProviderOpenAI})
	if got != domain.ProviderOpenAI {
		t.Fatalf("explicit provider ignored: got %s", got)
	}

	// Google Meet defaults to gladia, everything else to deepgram.
	if got := ProviderForMeeting("https://meet.google.com/abc", domain.TranscriptionSettings{}); got != domain.ProviderGladia {
		t.Fatalf("meet default = %s; want gladia", got)
	}
	if got := ProviderForMeeting("https://zoom.us/j/1", domain.TranscriptionSettings{}); got != domain.ProviderDeepgram {
		t.Fatalf("zoom default = %s; want deepgram", got)
	}
}

func TestDefaultBotName(t *testing.T) {
	cases := map[MeetingPlatform]string{
		PlatformZoom:       "Zoom Notetaker",
		PlatformGoogleMeet: "Google Meet Notetaker",
		PlatformTeams:      "Teams Notetaker",
		PlatformUnknown:    "Meeting Notetaker",
	}
	for platform, want := range cases {
		if got := DefaultBotName(platform); got != want {
			t.Errorf("DefaultBotName(%s) = %q; want %q", platform, got, want)
		}
	}
}
