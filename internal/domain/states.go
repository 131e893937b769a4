package domain

import (
	"time"

	"gorm.io/gorm"
)

// BotState is the lifecycle state of a bot. It is always a pure function of
// the bot's ordered event history (see Fold); the cached Bot.State column is
// only ever written in the same transaction as the event that produced it.
type BotState string

const (
	StateReady      BotState = "ready" // row exists, no join requested yet
	StateJoining    BotState = "joining"
	StateJoined     BotState = "joined"
	StateLeaving    BotState = "leaving"
	StateLeft       BotState = "left"
	StateFatalError BotState = "fatal_error" // terminal
)

// Terminal reports whether no further events can be applied to a bot in s.
func (s BotState) Terminal() bool {
	return s == StateLeft || s == StateFatalError
}

// BotEventType enumerates the lifecycle events a bot can record.
type BotEventType string

const (
	EventJoinRequested  BotEventType = "join_requested"
	EventJoinedMeeting  BotEventType = "joined_meeting" // worker-reported
	EventLeaveRequested BotEventType = "leave_requested"
	EventLeftMeeting    BotEventType = "left_meeting" // worker-reported
	EventFatalError     BotEventType = "fatal_error"
)

// BotEventSubType qualifies an event; currently only leave_requested carries
// one, distinguishing who initiated the leave.
type BotEventSubType string

const (
	SubTypeLeaveUserRequested     BotEventSubType = "user_requested"
	SubTypeLeaveAutoTimeout       BotEventSubType = "auto_leave_timeout"
	SubTypeLeavePlatformInitiated BotEventSubType = "platform_initiated"
)

// transition describes one row of the lifecycle table: the states an event
// may be applied from and the state it produces.
type transition struct {
	from []BotState
	to   BotState
}

// anyNonTerminal is a sentinel "from" set meaning every non-terminal state.
var anyNonTerminal = []BotState{StateReady, StateJoining, StateJoined, StateLeaving}

// transitions is the authoritative lifecycle table. Events absent from the
// map are never legal.
var transitions = map[BotEventType]transition{
	EventJoinRequested:  {from: []BotState{StateReady}, to: StateJoining},
	EventJoinedMeeting:  {from: []BotState{StateJoining}, to: StateJoined},
	EventLeaveRequested: {from: []BotState{StateJoining, StateJoined}, to: StateLeaving},
	EventLeftMeeting:    {from: []BotState{StateLeaving}, to: StateLeft},
	EventFatalError:     {from: anyNonTerminal, to: StateFatalError},
}

// LegalSources returns the states from which eventType may be applied.
// The second return value is false for unknown event types.
func LegalSources(eventType BotEventType) ([]BotState, bool) {
	t, ok := transitions[eventType]
	if !ok {
		return nil, false
	}
	return t.from, true
}

// Result returns the state an event produces when legally applied.
// The second return value is false for unknown event types.
func Result(eventType BotEventType) (BotState, bool) {
	t, ok := transitions[eventType]
	if !ok {
		return "", false
	}
	return t.to, true
}

// Apply returns the state produced by applying eventType to current.
// ok is false when the transition is illegal (wrong source state or unknown
// event type); in that case the returned state equals current.
func Apply(current BotState, eventType BotEventType) (BotState, bool) {
	t, known := transitions[eventType]
	if !known {
		return current, false
	}
	for _, s := range t.from {
		if s == current {
			return t.to, true
		}
	}
	return current, false
}

// Fold replays an ordered event history from StateReady through the
// transition table and returns the resulting state. Events that would be
// illegal at their position are ignored; a history produced through
// EventService never contains any.
func Fold(events []BotEvent) BotState {
	state := StateReady
	for _, ev := range events {
		if next, ok := Apply(state, ev.EventType); ok {
			state = next
		}
	}
	return state
}

// BotEvent is an immutable, append-only lifecycle record. Rows are never
// updated or deleted; there is deliberately no UpdatedAt or DeletedAt.
type BotEvent struct {
	ID           string          `json:"-"                       gorm:"type:char(36);primaryKey"`
	BotID        string          `json:"-"                       gorm:"type:char(36);not null;index:idx_bot_events,priority:1"`
	EventType    BotEventType    `json:"type"                    gorm:"type:varchar(32);not null"`
	EventSubType BotEventSubType `json:"sub_type,omitempty"      gorm:"type:varchar(32)"`
	Metadata     map[string]any  `json:"metadata,omitempty"      gorm:"serializer:json"`
	CreatedAt    time.Time       `json:"created_at"              gorm:"index:idx_bot_events,priority:2"`

	// Events are cascade-deleted only when their bot row is hard-deleted,
	// which does not happen in normal operation.
	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for BotEvent.
func (BotEvent) TableName() string { return "bot_events" }

// BeforeUpdate rejects any attempt to mutate an event row.
func (BotEvent) BeforeUpdate(*gorm.DB) error {
	return gorm.ErrInvalidData
}
