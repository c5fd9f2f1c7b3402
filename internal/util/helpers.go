package util

import (
	"unicode/utf8"
)

// TruncateRunes — безопасное усечение по рунам, с многоточием при обрезке
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	rs := []rune(s)
	return string(rs[:n]) + "…"
}
