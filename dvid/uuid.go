package dvid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/twinj/uuid"
)

// UUID is a 32 character hexadecimal string that uniquely identifies a version node.
// Shorter strings are accepted by DVID servers as long as they uniquely prefix a
// version in the server.
type UUID string

// NilUUID is the UUID of all zeros.
const NilUUID = UUID("00000000000000000000000000000000")

// InstanceName is the name of a data instance within a repo.
type InstanceName string

// NewUUID returns a randomly generated version UUID.
func NewUUID() UUID {
	return UUID(fmt.Sprintf("%032x", uuid.NewV4().Bytes()))
}

// StringToUUID returns a normalized UUID given a full 32 character hexadecimal string,
// with or without the RFC 4122 dashes.
func StringToUUID(s string) (UUID, error) {
	str := strings.ToLower(strings.Replace(strings.TrimSpace(s), "-", "", -1))
	if len(str) != 32 {
		return "", fmt.Errorf("UUID %q should have 32 hexadecimal characters, not %d", s, len(str))
	}
	if _, err := hex.DecodeString(str); err != nil {
		return "", fmt.Errorf("UUID %q is not a hexadecimal string: %v", s, err)
	}
	return UUID(str), nil
}

// StringToUUIDPrefix accepts a full UUID or a unique hexadecimal prefix of at least
// 4 characters, as DVID servers do.
func StringToUUIDPrefix(s string) (UUID, error) {
	str := strings.ToLower(strings.Replace(strings.TrimSpace(s), "-", "", -1))
	if len(str) < 4 || len(str) > 32 {
		return "", fmt.Errorf("UUID %q must have between 4 and 32 hexadecimal characters", s)
	}
	for _, c := range str {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return "", fmt.Errorf("UUID %q has non-hexadecimal character %q", s, c)
		}
	}
	return UUID(str), nil
}

// Matches returns true if the given UUID is a prefix of (or equal to) the receiver.
func (u UUID) Matches(prefix UUID) bool {
	return len(prefix) > 0 && strings.HasPrefix(string(u), string(prefix))
}

func (u UUID) String() string {
	return string(u)
}
