// Package identity resolves the UUID a forwarded handshake claims for the
// local player.
package identity

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Source tells which resolution tier produced an identity.
type Source byte

const (
	SourceSession Source = iota
	SourceRemoteLookup
	SourceOfflineDerived
)

func (s Source) String() string {
	switch s {
	case SourceSession:
		return "session"
	case SourceRemoteLookup:
		return "remote_lookup"
	case SourceOfflineDerived:
		return "offline_derived"
	default:
		return "unknown"
	}
}

type PlayerIdentity struct {
	UUID   uuid.UUID
	Source Source
}

// Hex is the undashed lowercase form used on the wire.
func (id PlayerIdentity) Hex() string {
	return hex.EncodeToString(id.UUID[:])
}

func (id PlayerIdentity) String() string {
	return id.UUID.String()
}

// Session is the game session of the local player.
type Session interface {
	Username() string
	// UUID reports the authenticated UUID of an online-mode account.
	UUID() (uuid.UUID, bool)
}

// StaticSession is a Session with fixed values; a nil ID means the
// account is not authenticated.
type StaticSession struct {
	Name string
	ID   uuid.UUID
}

func (s StaticSession) Username() string {
	return s.Name
}

func (s StaticSession) UUID() (uuid.UUID, bool) {
	return s.ID, s.ID != uuid.Nil
}
