package backtest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is an intraday trading-session window, inclusive on both ends,
// expressed in minutes from midnight of the bar's own location.
type Window struct {
	Start int
	End   int
}

// ParseWindow parses "HH:MM-HH:MM", e.g. "09:15-12:00".
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("session %q: want HH:MM-HH:MM", s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Window{}, fmt.Errorf("session %q: %w", s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Window{}, fmt.Errorf("session %q: %w", s, err)
	}
	if end <= start {
		return Window{}, fmt.Errorf("session %q: end not after start", s)
	}
	return Window{Start: start, End: end}, nil
}

func parseClock(s string) (int, error) {
	hm := strings.Split(strings.TrimSpace(s), ":")
	if len(hm) != 2 {
		return 0, fmt.Errorf("bad clock %q", s)
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour %q", hm[0])
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute %q", hm[1])
	}
	return h*60 + m, nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	return m >= w.Start && m <= w.End
}

// inSession reports whether t falls inside any window. An empty window
// list means entries are allowed at any time of day.
func inSession(windows []Window, t time.Time) bool {
	if len(windows) == 0 {
		return true
	}
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
