package features

import (
	"fmt"
	"time"

	"RegimeChain/internal/domain/models"
)

const minutesPerDay = 24 * 60

// SessionWindow is a trading session expressed as minutes after local
// midnight in Location, half-open [Start, End). A nil Location means UTC.
type SessionWindow struct {
	Session  models.Session
	Start    int
	End      int
	Location *time.Location
}

func (w SessionWindow) minute(t time.Time) int {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return t.Hour()*60 + t.Minute()
}

// SessionSchedule buckets timestamps into sessions. Time outside every window is off-hours.
type SessionSchedule struct {
	Windows []SessionWindow
}

// DefaultSchedule is Asia 00:00-08:00, London 08:00-13:30, New York 13:30-20:00 UTC.
func DefaultSchedule() SessionSchedule {
	return SessionSchedule{Windows: []SessionWindow{
		{Session: models.SessionAsia, Start: 0, End: 8 * 60},
		{Session: models.SessionLondon, Start: 8 * 60, End: 13*60 + 30},
		{Session: models.SessionNewYork, Start: 13*60 + 30, End: 20 * 60},
	}}
}

// Classify returns the session containing t and the minutes elapsed since it opened.
// Off-hours minutes count from the close of the latest preceding window.
func (s SessionSchedule) Classify(t time.Time) models.SessionMetrics {
	for _, w := range s.Windows {
		if m := w.minute(t); m >= w.Start && m < w.End {
			return models.SessionMetrics{Session: w.Session, MinutesSinceOpen: m - w.Start}
		}
	}
	since := -1
	for _, w := range s.Windows {
		d := (w.minute(t) - w.End + minutesPerDay) % minutesPerDay
		if since < 0 || d < since {
			since = d
		}
	}
	if since < 0 {
		since = SessionWindow{}.minute(t)
	}
	return models.SessionMetrics{Session: models.SessionOffHours, MinutesSinceOpen: since}
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is accepted as end of day.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("parse clock %q: out of range", s)
	}
	return h*60 + m, nil
}

// ParseSession maps a configured session name to the model value.
func ParseSession(name string) (models.Session, error) {
	switch models.Session(name) {
	case models.SessionAsia, models.SessionLondon, models.SessionNewYork:
		return models.Session(name), nil
	default:
		return "", fmt.Errorf("unknown session %q", name)
	}
}
