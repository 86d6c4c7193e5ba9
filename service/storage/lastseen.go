package storage

import (
	"fmt"
	"time"
)

// FormatLastSeen renders the elapsed time since lastSeen as a coarse
// badge: floor of each unit, largest nonzero unit wins. Months are 30
// days, years 365.
func FormatLastSeen(lastSeen, now time.Time) string {
	if lastSeen.IsZero() {
		return ""
	}
	d := now.Sub(lastSeen)
	if d < 0 {
		d = 0
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24
	months := days / 30
	years := days / 365

	switch {
	case years > 0:
		return fmt.Sprintf("%d Y", years)
	case months > 0:
		return fmt.Sprintf("%d M", months)
	case days > 0:
		return fmt.Sprintf("%d D", days)
	case hours > 0:
		return fmt.Sprintf("%d H", hours)
	case minutes > 0:
		return fmt.Sprintf("%d Min", minutes)
	default:
		return fmt.Sprintf("%d S", seconds)
	}
}

// FormatLastSeenMessage is the long form shown in the chat header.
func FormatLastSeenMessage(lastSeen time.Time) string {
	if lastSeen.IsZero() {
		return ""
	}
	return "Last seen at " + lastSeen.Format("15:04")
}
