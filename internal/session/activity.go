package session

import "fmt"

// Activity is a user signal that keeps a session alive.
type Activity string

const (
	ActivityMouseDown  Activity = "mousedown"
	ActivityMouseMove  Activity = "mousemove"
	ActivityKeyPress   Activity = "keypress"
	ActivityScroll     Activity = "scroll"
	ActivityTouchStart Activity = "touchstart"
	// ActivityRequest is recorded for every authenticated API call.
	ActivityRequest Activity = "request"
)

var activities = map[Activity]struct{}{
	ActivityMouseDown:  {},
	ActivityMouseMove:  {},
	ActivityKeyPress:   {},
	ActivityScroll:     {},
	ActivityTouchStart: {},
	ActivityRequest:    {},
}

// ParseActivity validates a client-reported activity name.
func ParseActivity(s string) (Activity, error) {
	a := Activity(s)
	if _, ok := activities[a]; !ok {
		return "", fmt.Errorf("unknown activity %q", s)
	}
	return a, nil
}
