package touch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var layout = Layout{
	Sync:    Rect{X: 155, Y: 5, W: 80, H: 40},
	Holiday: Rect{X: 5, Y: 5, W: 80, H: 40},
	Setup:   Rect{X: 45, Y: 100, W: 150, H: 40},
}

func input(now time.Time) Input {
	return Input{Now: now, DisplayOn: true, Layout: layout}
}

func TestTransition_SyncFiresOnRelease(t *testing.T) {
	now := time.Unix(1000, 0)

	s, eff := Transition(State{}, Sample{X: 160, Y: 10, Touching: true}, input(now))
	assert.Equal(t, Armed, s.Phase)
	assert.Equal(t, ButtonSync, s.Button)
	assert.False(t, eff.SyncAndFetch)

	s, eff = Transition(s, Sample{}, input(now.Add(200*time.Millisecond)))
	assert.Equal(t, Idle, s.Phase)
	assert.True(t, eff.SyncAndFetch)
	assert.Equal(t, ButtonSync, eff.HighlightButton)
	assert.True(t, eff.RefreshDisplay)
}

func TestTransition_DebouncesHeldTouch(t *testing.T) {
	now := time.Unix(1000, 0)

	s, _ := Transition(State{}, Sample{X: 160, Y: 10, Touching: true}, input(now))
	for i := 0; i < 10; i++ {
		var eff Effects
		s, eff = Transition(s, Sample{X: 160, Y: 10, Touching: true}, input(now.Add(time.Duration(i)*100*time.Millisecond)))
		assert.Equal(t, Armed, s.Phase)
		assert.False(t, eff.SyncAndFetch, "held touch must not retrigger")
	}
}

func TestTransition_HolidayLongPressTogglesOnce(t *testing.T) {
	now := time.Unix(1000, 0)
	press := Sample{X: 10, Y: 10, Touching: true}

	s, eff := Transition(State{}, press, input(now))
	assert.Equal(t, ButtonHoliday, s.Button)
	assert.Equal(t, ButtonHoliday, eff.HighlightButton)
	assert.False(t, eff.ToggleHoliday)

	s, eff = Transition(s, press, input(now.Add(1900*time.Millisecond)))
	assert.False(t, eff.ToggleHoliday, "below the hold threshold")

	s, eff = Transition(s, press, input(now.Add(2000*time.Millisecond)))
	assert.True(t, eff.ToggleHoliday)
	assert.Equal(t, LongPressFired, s.Phase)

	s, eff = Transition(s, press, input(now.Add(5*time.Second)))
	assert.False(t, eff.ToggleHoliday, "continued hold must not toggle again")

	s, eff = Transition(s, Sample{}, input(now.Add(6*time.Second)))
	assert.Equal(t, Idle, s.Phase)
	assert.False(t, eff.ToggleHoliday)
	assert.True(t, eff.RefreshDisplay)
}

func TestTransition_HolidayShortPressNoToggle(t *testing.T) {
	now := time.Unix(1000, 0)

	s, _ := Transition(State{}, Sample{X: 10, Y: 10, Touching: true}, input(now))
	s, eff := Transition(s, Sample{}, input(now.Add(500*time.Millisecond)))
	assert.Equal(t, Idle, s.Phase)
	assert.False(t, eff.ToggleHoliday)
}

func TestTransition_DarkDisplayTouchOnlyWakes(t *testing.T) {
	in := input(time.Unix(1000, 0))
	in.DisplayOn = false

	s, eff := Transition(State{}, Sample{X: 160, Y: 10, Touching: true}, in)
	assert.True(t, eff.WakeDisplay)
	assert.Equal(t, Latched, s.Phase)
	assert.False(t, eff.SyncAndFetch, "wake touch is consumed, not interpreted")

	// Release of a wake touch refreshes but triggers nothing.
	s, eff = Transition(s, Sample{}, input(time.Unix(1001, 0)))
	assert.Equal(t, Idle, s.Phase)
	assert.True(t, eff.RefreshDisplay)
	assert.False(t, eff.SyncAndFetch)
	assert.False(t, eff.EnterSetup)
}

func TestTransition_SetupOnlyWhileDisconnected(t *testing.T) {
	now := time.Unix(1000, 0)
	press := Sample{X: 100, Y: 120, Touching: true}

	s, _ := Transition(State{}, press, input(now))
	s, eff := Transition(s, Sample{}, input(now.Add(time.Second)))
	assert.False(t, eff.EnterSetup, "setup region inert while connected")

	in := input(now)
	in.ConnectivityFailed = true
	s, _ = Transition(State{}, press, in)
	assert.Equal(t, ButtonSetup, s.Button)
	s, eff = Transition(s, Sample{}, in)
	assert.True(t, eff.EnterSetup)
	assert.Equal(t, Idle, s.Phase)
}

func TestTransition_TouchOutsideRegionsStillDebounces(t *testing.T) {
	now := time.Unix(1000, 0)
	press := Sample{X: 120, Y: 200, Touching: true}

	s, eff := Transition(State{}, press, input(now))
	assert.Equal(t, Armed, s.Phase)
	assert.Equal(t, ButtonNone, s.Button)

	s, eff = Transition(s, Sample{}, input(now.Add(time.Second)))
	assert.Equal(t, Idle, s.Phase)
	assert.True(t, eff.RefreshDisplay)
	assert.False(t, eff.SyncAndFetch)
	assert.False(t, eff.ToggleHoliday)
}

func TestTransition_IdleNoTouchIsQuiet(t *testing.T) {
	s, eff := Transition(State{}, Sample{}, input(time.Unix(1000, 0)))
	assert.Equal(t, Idle, s.Phase)
	assert.Equal(t, Effects{}, eff)
}
