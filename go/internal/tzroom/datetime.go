package tzroom

import (
	"strings"
	"unicode/utf8"
)

const (
	// LocalTimezone selects the owner's own clock instead of the time API.
	LocalTimezone = "local"

	datetimeWidth = 26
	// Layout of a normalized datetime, used when the server supplies one.
	datetimeLayout = "2006-01-02T15:04:05.000000"
)

// NormalizeDatetime strips a trailing "Z" and truncates to
// "YYYY-MM-DDTHH:MM:SS.ffffff", dropping any UTC offset suffix. The cut
// never splits a multi-byte character.
func NormalizeDatetime(s string) string {
	s = strings.TrimSuffix(s, "Z")
	if len(s) > datetimeWidth {
		cut := datetimeWidth
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
