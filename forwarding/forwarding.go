// Package forwarding encodes the BungeeCord legacy IP-forwarding suffix
// that trails the host in a handshake address field.
package forwarding

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/realDragonium/bungeespoof/identity"
)

const (
	// MaxAddressLength is the character limit of the handshake address field.
	MaxAddressLength = 255
	Separator        = "\x00"
)

// BuildSuffix returns "\0" + forwardedIP + "\0" + the undashed uuid.
func BuildSuffix(forwardedIP string, id identity.PlayerIdentity) string {
	return Separator + forwardedIP + Separator + id.Hex()
}

// Property is one entry of the JSON profile property list that may follow
// the uuid.
type Property struct {
	Name      string  `json:"name"`
	Value     string  `json:"value"`
	Signature *string `json:"signature,omitempty"`
}

// ForgeProperties moves a Forge handshake marker (everything from the first
// NUL of the client's address on) into the property list, so the address
// keeps exactly one field per separator. NULs in the marker become \x01.
func ForgeProperties(marker string) string {
	empty := ""
	props := []Property{
		{Name: "forgeClient", Value: "true"},
		{Name: "extraData", Value: strings.ReplaceAll(marker, Separator, "\x01"), Signature: &empty},
	}
	bb, err := json.Marshal(props)
	if err != nil {
		return "[]"
	}
	return string(bb)
}

// ExtraData returns the Forge marker carried in Properties, with its NULs
// restored, or "" when there is none.
func (f Forwarded) ExtraData() string {
	var props []Property
	if f.Properties == "" || json.Unmarshal([]byte(f.Properties), &props) != nil {
		return ""
	}
	for _, p := range props {
		if p.Name == "extraData" {
			return strings.ReplaceAll(p.Value, "\x01", Separator)
		}
	}
	return ""
}

// Combine appends suffix to original. A result longer than limit characters
// is cut at limit, which may cut into the suffix; the bool reports that.
// A limit <= 0 means MaxAddressLength.
func Combine(original, suffix string, limit int) (string, bool) {
	if limit <= 0 {
		limit = MaxAddressLength
	}
	combined := original + suffix
	if utf8.RuneCountInString(combined) <= limit {
		return combined, false
	}
	return truncateRunes(combined, limit), true
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Forwarded is a legacy-forwarded address split the way a backend reads it.
type Forwarded struct {
	Host        string
	ForwardedIP string
	UUID        uuid.UUID
	// Properties is the optional JSON profile property list some proxies add.
	Properties string
}

// Parse splits address into its forwarding fields. It reports false when
// the address does not carry host, ip and a valid uuid.
func Parse(address string) (Forwarded, bool) {
	parts := strings.Split(address, Separator)
	if len(parts) != 3 && len(parts) != 4 {
		return Forwarded{}, false
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return Forwarded{}, false
	}
	fwd := Forwarded{
		Host:        parts[0],
		ForwardedIP: parts[1],
		UUID:        id,
	}
	if len(parts) == 4 {
		fwd.Properties = parts[3]
	}
	return fwd, true
}
