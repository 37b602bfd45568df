// Package touch interprets raw panel samples into button semantics as an
// explicit finite-state machine. Transition is pure: no clocks, no hardware,
// effects are returned for the loop to execute. (Pattern: debounce logic
// packages keep time injectable and side effects out.)
package touch

import "time"

// Button identifies a hit-test region.
type Button int

const (
	ButtonNone Button = iota
	ButtonSync
	ButtonHoliday
	ButtonSetup
)

// Phase is the FSM phase.
type Phase int

const (
	// Idle waits for a touch-down.
	Idle Phase = iota
	// Armed latched on a touch-down; Button may be ButtonNone for a touch
	// outside every region, which still debounces until release.
	Armed
	// LongPressFired marks the Holiday long-press as consumed so holding
	// further cannot toggle twice.
	LongPressFired
	// Latched consumed a wake-only touch; it is not interpreted as a press.
	Latched
)

// State is the FSM value carried across ticks.
type State struct {
	Phase      Phase
	Button     Button
	PressStart time.Time
}

// Sample is one poll result. Touching false means no finger on the panel.
type Sample struct {
	X, Y     int
	Touching bool
}

// Rect is a fixed rectangular hit region.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Layout fixes the button regions for hit-testing.
type Layout struct {
	Sync    Rect
	Holiday Rect
	Setup   Rect
}

// Input is the per-tick context the transition depends on.
type Input struct {
	Now                time.Time
	DisplayOn          bool
	ConnectivityFailed bool
	Layout             Layout
}

// Effects are the actions the loop must carry out after a transition.
type Effects struct {
	WakeDisplay     bool
	HighlightButton Button
	ToggleHoliday   bool
	SyncAndFetch    bool
	EnterSetup      bool
	RefreshDisplay  bool
}

// HoldToToggle is how long the Holiday button must be held before the
// long-press fires.
const HoldToToggle = 2000 * time.Millisecond

// Transition advances the FSM by one tick given an optional sample.
func Transition(s State, sample Sample, in Input) (State, Effects) {
	var eff Effects

	if !sample.Touching {
		return release(s)
	}

	// A touch on a dark display only wakes it; the press is consumed.
	if !in.DisplayOn && s.Phase == Idle {
		eff.WakeDisplay = true
		return State{Phase: Latched}, eff
	}

	if s.Phase == Idle {
		s = arm(sample, in, &eff)
	}

	// Holding Holiday past the threshold toggles exactly once.
	if s.Phase == Armed && s.Button == ButtonHoliday &&
		in.Now.Sub(s.PressStart) >= HoldToToggle {
		s.Phase = LongPressFired
		eff.ToggleHoliday = true
		eff.RefreshDisplay = true
	}

	return s, eff
}

// arm latches the debounce on the first touch-down and hit-tests the
// regions. The Setup region only exists while connectivity has failed.
func arm(sample Sample, in Input, eff *Effects) State {
	switch {
	case in.ConnectivityFailed && in.Layout.Setup.Contains(sample.X, sample.Y):
		return State{Phase: Armed, Button: ButtonSetup}
	case in.Layout.Sync.Contains(sample.X, sample.Y):
		return State{Phase: Armed, Button: ButtonSync, PressStart: in.Now}
	case in.Layout.Holiday.Contains(sample.X, sample.Y):
		eff.HighlightButton = ButtonHoliday
		return State{Phase: Armed, Button: ButtonHoliday, PressStart: in.Now}
	default:
		return State{Phase: Armed, Button: ButtonNone}
	}
}

// release maps the end of a touch to its action and returns to Idle. Any
// latched touch refreshes the display on release.
func release(s State) (State, Effects) {
	var eff Effects
	if s.Phase == Idle {
		return s, eff
	}

	eff.RefreshDisplay = true
	if s.Phase == Armed {
		switch s.Button {
		case ButtonSetup:
			eff.EnterSetup = true
		case ButtonSync:
			eff.HighlightButton = ButtonSync
			eff.SyncAndFetch = true
		}
	}
	return State{}, eff
}
