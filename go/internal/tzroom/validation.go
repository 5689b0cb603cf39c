package tzroom

import "regexp"

// At least two characters: a word character first, then word characters,
// whitespace or hyphens.
var roomNamePattern = regexp.MustCompile(`^\w[\w\s-]+$`)

// IsValidRoomName reports whether name can be used for a new room.
func IsValidRoomName(name string) bool {
	return roomNamePattern.MatchString(name)
}
