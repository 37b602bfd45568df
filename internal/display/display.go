// Package display renders the status screen and manages panel power and
// burn-in housekeeping. The surface is output-only; all drawing goes through
// the render capability.
package display

import (
	"fmt"
	"time"

	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/platform"
	"github.com/eddwatts/BellTimer/internal/state"
	"github.com/eddwatts/BellTimer/internal/touch"
)

// RGB565 palette.
const (
	Black   uint16 = 0x0000
	Blue    uint16 = 0x001F
	Red     uint16 = 0xF800
	Green   uint16 = 0x07E0
	Cyan    uint16 = 0x07FF
	Magenta uint16 = 0xF81F
	Yellow  uint16 = 0xFFE0
	White   uint16 = 0xFFFF
	Orange  uint16 = 0xFD20
)

const fontHeight = 16

type Display struct {
	surface platform.RenderSurface
	power   platform.DisplayPower
	st      *state.DeviceState
	clk     *clock.Service

	width, height int

	on           bool
	lastActivity time.Time

	offTimeout    time.Duration
	shiftInterval time.Duration
	shiftX        int
	shiftY        int
	shiftDir      int
	lastShift     time.Time

	layout touch.Layout
}

func New(surface platform.RenderSurface, power platform.DisplayPower, st *state.DeviceState, clk *clock.Service,
	width, height int, offTimeout, shiftInterval time.Duration) *Display {
	d := &Display{
		surface:       surface,
		power:         power,
		st:            st,
		clk:           clk,
		width:         width,
		height:        height,
		on:            true,
		lastActivity:  time.Now(),
		offTimeout:    offTimeout,
		shiftInterval: shiftInterval,
		lastShift:     time.Now(),
		layout: touch.Layout{
			Sync:    touch.Rect{X: width - 85, Y: 5, W: 80, H: 40},
			Holiday: touch.Rect{X: 5, Y: 5, W: 80, H: 40},
			Setup:   touch.Rect{X: width/2 - 75, Y: 100, W: 150, H: 40},
		},
	}
	power.On()
	return d
}

func (d *Display) Layout() touch.Layout { return d.layout }

func (d *Display) On() bool { return d.on }

// Wake powers the panel back up and restarts the inactivity timer.
func (d *Display) Wake() {
	if !d.on {
		d.power.On()
		d.on = true
	}
	d.lastActivity = time.Now()
}

// ManagePower blanks the panel after the inactivity timeout.
func (d *Display) ManagePower(now time.Time) {
	if d.on && now.Sub(d.lastActivity) > d.offTimeout {
		d.power.Off()
		d.on = false
	}
}

// ManageShift rotates a one-pixel offset to spread burn-in.
func (d *Display) ManageShift(now time.Time) {
	if !d.on || d.shiftInterval <= 0 {
		return
	}
	if now.Sub(d.lastShift) > d.shiftInterval {
		d.shiftDir = (d.shiftDir + 1) % 4
		shifts := [4][2]int{{1, 0}, {1, 1}, {0, 1}, {0, 0}}
		d.shiftX, d.shiftY = shifts[d.shiftDir][0], shifts[d.shiftDir][1]
		d.lastShift = now
	}
}

// SetStatus records the status line and redraws.
func (d *Display) SetStatus(line string, color uint16) {
	d.st.StatusLine = line
	d.st.StatusColor = color
	d.Render()
}

// Render redraws the whole screen from device state.
func (d *Display) Render() {
	d.Wake()
	d.surface.Clear()
	px, py := d.shiftX, d.shiftY

	if d.st.WifiFailed {
		d.renderWifiFailed(px, py)
		return
	}

	now := d.clk.LocalNow()
	d.text(now.DateString(), 5+px, 50+py, Cyan)
	d.text(now.ClockString(), 5+px, 75+py, White)

	d.button(d.layout.Sync, "Sync", White, Blue)
	holidayColor := Green
	if d.st.Holiday {
		holidayColor = Red
	}
	d.button(d.layout.Holiday, "Holiday", White, holidayColor)

	d.text("Schedule: "+d.st.ActiveSchedule, 5+px, 100+py, Magenta)

	if d.st.Holiday {
		d.centered("--- HOLIDAY MODE ---", 125+py, Red, px)
		d.centered("IS ACTIVE", 150+py, Red, px)
	} else {
		d.text("Next Bell:", 5+px, 120+py, Yellow)
		if nb := d.st.NextBell; nb != nil {
			name := nb.Event.BellName
			if name == "" {
				name = "No Name"
			}
			if len(name) > 18 {
				name = name[:18]
			}
			d.text(fmt.Sprintf("%s at %s", nb.DayName, nb.Event.Time), 15+px, 145+py, White)
			d.text("Name: "+name, 15+px, 165+py, White)
		} else {
			d.text("None scheduled", 15+px, 145+py, White)
		}
	}

	wifiStr := fmt.Sprintf("WiFi:%ddBm", d.st.RSSI)
	syncStr := "Sync:" + d.st.LastSync
	d.text(wifiStr, 5+px, 190+py, Magenta)
	d.text(syncStr, d.width-d.surface.TextWidth(syncStr)-5+px, 190+py, Magenta)

	d.text("Status:", 5+px, 215+py, Yellow)
	d.surface.DrawText(d.st.StatusLine, 80+px, 215+py, d.st.StatusColor, Black)
	d.text(d.st.IPAddress, d.width-d.surface.TextWidth(d.st.IPAddress)-5+px, 215+py, Cyan)
}

func (d *Display) renderWifiFailed(px, py int) {
	msg := "WiFi Connection Failed"
	d.surface.DrawText(msg, (d.width-d.surface.TextWidth(msg))/2+px, 60+py, Red, Black)
	r := d.layout.Setup
	d.surface.FillRect(r.X+px, r.Y+py, r.W, r.H, Orange)
	label := "Setup WiFi"
	d.surface.DrawText(label, r.X+(r.W-d.surface.TextWidth(label))/2+px, r.Y+(r.H-fontHeight)/2+py, Black, Orange)
}

// HighlightButton gives immediate press feedback before the action runs.
func (d *Display) HighlightButton(b touch.Button) {
	switch b {
	case touch.ButtonHoliday:
		r := d.layout.Holiday
		d.surface.FillRect(r.X, r.Y, r.W, r.H, Yellow)
		d.surface.DrawText("Holiday", r.X+(r.W-d.surface.TextWidth("Holiday"))/2, r.Y+(r.H-fontHeight)/2, Black, Yellow)
	case touch.ButtonSync:
		r := d.layout.Sync
		d.surface.FillRect(r.X, r.Y, r.W, r.H, Red)
		d.surface.DrawText("Sync", r.X+(r.W-d.surface.TextWidth("Sync"))/2, r.Y+(r.H-fontHeight)/2, White, Red)
	}
}

// ShowSetup draws the provisioning instructions screen.
func (d *Display) ShowSetup(apName, addr string) {
	d.Wake()
	d.surface.Clear()
	d.centered("WiFi Setup", 10, Yellow, 0)
	d.text("1. Connect phone/PC to", 10, 40, White)
	d.text("   WiFi: "+apName, 10, 65, Cyan)
	d.text("2. Open a web browser", 10, 105, White)
	d.text("3. Go to this address:", 10, 145, White)
	d.text("   http://"+addr, 10, 170, Cyan)
	d.centered("Waiting for user...", 210, White, 0)
}

func (d *Display) text(s string, x, y int, fg uint16) {
	d.surface.DrawText(s, x, y, fg, Black)
}

func (d *Display) centered(s string, y int, fg uint16, px int) {
	d.surface.DrawText(s, (d.width-d.surface.TextWidth(s))/2+px, y, fg, Black)
}

func (d *Display) button(r touch.Rect, label string, fg, bg uint16) {
	px, py := d.shiftX, d.shiftY
	d.surface.FillRect(r.X+px, r.Y+py, r.W, r.H, bg)
	d.surface.DrawText(label, r.X+(r.W-d.surface.TextWidth(label))/2+px, r.Y+(r.H-fontHeight)/2+py, fg, bg)
}
