package identity

import (
	"github.com/Tnze/go-mc/offline"
	"github.com/google/uuid"
)

// OfflineUUID is the name based version 3 UUID an offline-mode server
// assigns to username: MD5 over "OfflinePlayer:"+username.
func OfflineUUID(username string) uuid.UUID {
	return offline.NameToUUID(username)
}
