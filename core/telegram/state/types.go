package state

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation progress for a user. Draft holds the typed
// in-flight payload of the current flow (a cart, a subscription form); it is
// never string-serialized. LastTouched is advanced on every access that goes
// through the manager and drives expiry.
type Session struct {
	State       State
	Draft       any
	TempData    map[string]interface{}
	LastTouched time.Time
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	Get(userID int64) *Session
	SetTemp(userID int64, key string, value interface{})
	ClearTemp(userID int64, key string)
	GetTemp(userID int64, key string) (interface{}, bool)
	GetTempInt64(userID int64, key string) (int64, bool)
	Clear(userID int64)

	// Typed flow payload
	SetDraft(userID int64, draft any)
	GetDraft(userID int64) (any, bool)

	// Dialog state
	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool
	ClearState(userID int64)

	// Expiry
	Touch(userID int64)
	Reap(maxIdle time.Duration) int

	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}
