package testutils

import "strings"

// GenerateOverBytesUnderRunes returns a string that is always longer in bytes than in runes.
func GenerateOverBytesUnderRunes(count int) string {
	symbol := "😁" // 4 bytes, 1 rune
	return strings.Repeat(symbol, count)
}
