package display

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/model"
	"github.com/eddwatts/BellTimer/internal/state"
)

type recordingSurface struct {
	texts  []string
	rects  int
	clears int
}

func (r *recordingSurface) Clear() { r.clears++ }

func (r *recordingSurface) DrawText(text string, x, y int, fg, bg uint16) {
	r.texts = append(r.texts, text)
}

func (r *recordingSurface) FillRect(x, y, w, h int, color uint16) { r.rects++ }

func (r *recordingSurface) TextWidth(text string) int { return 8 * len(text) }

func (r *recordingSurface) drew(substr string) bool {
	for _, t := range r.texts {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

type recordingPower struct{ state []string }

func (r *recordingPower) On()  { r.state = append(r.state, "on") }
func (r *recordingPower) Off() { r.state = append(r.state, "off") }

type fixedTime struct{ t time.Time }

func (f fixedTime) Now() time.Time { return f.t }
func (f fixedTime) Sync() error    { return nil }

func newDisplay(st *state.DeviceState) (*Display, *recordingSurface, *recordingPower) {
	surface := &recordingSurface{}
	power := &recordingPower{}
	clk := clock.New(fixedTime{t: time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)})
	d := New(surface, power, st, clk, 240, 240, 5*time.Minute, time.Minute)
	return d, surface, power
}

func TestLayout_MatchesPanelGeometry(t *testing.T) {
	d, _, _ := newDisplay(&state.DeviceState{})
	l := d.Layout()
	assert.Equal(t, 155, l.Sync.X)
	assert.Equal(t, 5, l.Holiday.X)
	assert.Equal(t, 45, l.Setup.X)
	assert.Equal(t, 100, l.Setup.Y)
}

func TestManagePower_BlanksAfterTimeout(t *testing.T) {
	d, _, power := newDisplay(&state.DeviceState{})
	require.True(t, d.On())

	start := time.Now()
	d.ManagePower(start.Add(4 * time.Minute))
	assert.True(t, d.On())

	d.ManagePower(start.Add(6 * time.Minute))
	assert.False(t, d.On())
	assert.Contains(t, power.state, "off")

	d.Wake()
	assert.True(t, d.On())
}

func TestRender_StatusScreen(t *testing.T) {
	st := &state.DeviceState{
		ActiveSchedule: "Normal Day",
		NextBell:       &model.NextBell{Event: model.BellEvent{Time: "08:30", BellName: "Period1"}, DayName: "Mon"},
		StatusLine:     "Idle",
		IPAddress:      "192.168.1.20",
		LastSync:       "07:30",
	}
	d, surface, _ := newDisplay(st)
	surface.texts = nil

	d.Render()
	assert.True(t, surface.drew("Schedule: Normal Day"))
	assert.True(t, surface.drew("Mon at 08:30"))
	assert.True(t, surface.drew("Name: Period1"))
	assert.False(t, surface.drew("HOLIDAY"))
}

func TestRender_HolidayBannerReplacesNextBell(t *testing.T) {
	st := &state.DeviceState{
		ActiveSchedule: "Normal Day",
		Holiday:        true,
		NextBell:       &model.NextBell{Event: model.BellEvent{Time: "08:30"}, DayName: "Mon"},
	}
	d, surface, _ := newDisplay(st)
	surface.texts = nil

	d.Render()
	assert.True(t, surface.drew("HOLIDAY MODE"))
	assert.False(t, surface.drew("Mon at 08:30"))
}

func TestRender_NoScheduledBells(t *testing.T) {
	d, surface, _ := newDisplay(&state.DeviceState{ActiveSchedule: "Normal Day"})
	surface.texts = nil

	d.Render()
	assert.True(t, surface.drew("None scheduled"))
}

func TestRender_WifiFailedShowsSetup(t *testing.T) {
	d, surface, _ := newDisplay(&state.DeviceState{WifiFailed: true})
	surface.texts = nil

	d.Render()
	assert.True(t, surface.drew("WiFi Connection Failed"))
	assert.True(t, surface.drew("Setup WiFi"))
	assert.False(t, surface.drew("Schedule:"))
}

func TestSetStatus_StoresAndRedraws(t *testing.T) {
	st := &state.DeviceState{}
	d, surface, _ := newDisplay(st)
	before := surface.clears

	d.SetStatus("Ringing", Orange)
	assert.Equal(t, "Ringing", st.StatusLine)
	assert.Equal(t, Orange, st.StatusColor)
	assert.Greater(t, surface.clears, before)
}

func TestRender_WakesBlankedPanel(t *testing.T) {
	d, _, power := newDisplay(&state.DeviceState{})
	d.ManagePower(time.Now().Add(10 * time.Minute))
	require.False(t, d.On())

	d.Render()
	assert.True(t, d.On())
	assert.Equal(t, "on", power.state[len(power.state)-1])
}
