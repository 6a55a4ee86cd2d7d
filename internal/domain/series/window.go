package series

import (
	"errors"
	"strings"
)

// Window is a named chart time range. The string value is the name stored
// in the user's period preference.
type Window string

const (
	All      Window = "all"
	Week     Window = "week"
	Month    Window = "month"
	Quarter  Window = "3m"
	HalfYear Window = "6m"
	Year     Window = "year"
)

// ErrUnknownWindow is returned by ParseWindow for unrecognized names.
var ErrUnknownWindow = errors.New("unknown period")

var lookbacks = map[Window]int{
	Week:     7,
	Month:    30,
	Quarter:  91,
	HalfYear: 183,
	Year:     365,
}

// aliases accepted on input in addition to the stored names.
var aliases = map[string]Window{
	"quarter":   Quarter,
	"half-year": HalfYear,
	"halfyear":  HalfYear,
}

// Windows lists every window from shortest to All.
func Windows() []Window {
	return []Window{Week, Month, Quarter, HalfYear, Year, All}
}

// LookbackDays returns the number of calendar days the window shows.
// The second result is false for All, which shows the whole domain.
func (w Window) LookbackDays() (int, bool) {
	n, ok := lookbacks[w]
	return n, ok
}

// Valid reports whether w is a known window.
func (w Window) Valid() bool {
	if w == All {
		return true
	}
	_, ok := lookbacks[w]
	return ok
}

func (w Window) String() string { return string(w) }

// ParseWindow resolves a window name, case-insensitively.
func ParseWindow(s string) (Window, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if w := Window(key); w.Valid() {
		return w, nil
	}
	if w, ok := aliases[key]; ok {
		return w, nil
	}
	return All, ErrUnknownWindow
}
