package domain

// BotSettings is the settings document attached to a bot at creation time.
// It is stored as a single JSON column; sub-documents are typed so request
// validation can reject malformed payloads before anything is persisted.
type BotSettings struct {
	Transcription  TranscriptionSettings  `json:"transcription_settings"`
	Recording      RecordingSettings      `json:"recording_settings"`
	RTMP           RTMPSettings           `json:"rtmp_settings"`
	Debug          DebugSettings          `json:"debug_settings"`
	AutomaticLeave AutomaticLeaveSettings `json:"automatic_leave_settings"`
}

// TranscriptionSettings controls if and how meeting audio is transcribed.
// Provider may be left empty, in which case it is resolved from the meeting
// URL (see services.ProviderForMeeting).
type TranscriptionSettings struct {
	Enabled  bool                  `json:"enabled"`
	Language string                `json:"language,omitempty"`
	Provider TranscriptionProvider `json:"provider,omitempty"`
}

// RecordingSettings controls the capture format of the default recording.
type RecordingSettings struct {
	AudioOnly bool   `json:"audio_only"`
	View      string `json:"view,omitempty"` // e.g. "speaker", "gallery"
}

// RTMPSettings configures an optional live restream of the meeting.
type RTMPSettings struct {
	DestinationURL string `json:"destination_url,omitempty"`
	StreamKey      string `json:"stream_key,omitempty"`
}

// DebugSettings enables extra diagnostics in the worker.
type DebugSettings struct {
	CreateDebugRecording bool `json:"create_debug_recording"`
}

// AutomaticLeaveSettings tells the worker when to give up on a meeting.
// Zero values mean "use the worker default".
type AutomaticLeaveSettings struct {
	WaitingRoomTimeoutSeconds      int `json:"waiting_room_timeout_seconds,omitempty"`
	NooneJoinedTimeoutSeconds      int `json:"noone_joined_timeout_seconds,omitempty"`
	EveryoneLeftTimeoutSeconds     int `json:"everyone_left_timeout_seconds,omitempty"`
	MaxMeetingDurationSeconds      int `json:"max_meeting_duration_seconds,omitempty"`
	SilenceDetectionTimeoutSeconds int `json:"silence_detection_timeout_seconds,omitempty"`
}
