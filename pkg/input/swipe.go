package input

// SwipeTracker turns touch start/end points into Swipe events.
type SwipeTracker struct {
	active bool
	x, y   float64
}

// Start records the first touch point.
func (t *SwipeTracker) Start(x, y float64) {
	t.active = true
	t.x, t.y = x, y
}

// End closes the gesture. It returns false when no gesture was started.
func (t *SwipeTracker) End(x, y float64) (Swipe, bool) {
	if !t.active {
		return Swipe{}, false
	}
	t.active = false
	return Swipe{DX: x - t.x, DY: y - t.y}, true
}

// Cancel drops an in-flight gesture.
func (t *SwipeTracker) Cancel() {
	t.active = false
}
