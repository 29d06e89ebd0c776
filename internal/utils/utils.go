package utils

import (
	"fmt"
	"strings"
)

// FormatETA formats a remaining-time estimate in seconds the way the
// status line shows it. Negative values mean Transmission has no estimate.
func FormatETA(eta int64) string {
	if eta < 0 {
		return "Unavailable"
	}

	days := eta / 86400
	hours := (eta % 86400) / 3600
	minutes := (eta % 3600) / 60
	seconds := eta % 60

	var sb strings.Builder
	if days > 0 {
		fmt.Fprintf(&sb, "%d days ", days)
	}
	if hours > 0 {
		fmt.Fprintf(&sb, "%d h %d min", hours, minutes)
	} else {
		fmt.Fprintf(&sb, "%d min %d sec", minutes, seconds)
	}
	return sb.String()
}

// Truncate shortens a display name to max runes, appending ".." when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) < max {
		return s
	}
	return string(runes[:max]) + ".."
}

// FileDisplayName strips the torrent's top-level directory from a file path
// when the file sits directly under it.
func FileDisplayName(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) == 2 {
		return parts[1]
	}
	return path
}
