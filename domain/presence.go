package domain

import "time"

type PresenceState int

const (
	Offline PresenceState = iota
	Online
)

func (s PresenceState) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// PresenceEntry is the last observed connectivity state of a user.
// LastSeen is only meaningful when the user is Offline; a zero LastSeen
// means the user was never observed.
type PresenceEntry struct {
	UserID   UserID
	State    PresenceState
	LastSeen time.Time
}
