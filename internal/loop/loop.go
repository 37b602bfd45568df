// Package loop is the top-level cooperative scheduler. One tick feeds the
// watchdog, handles at most one inbound request, runs the touch FSM and
// display housekeeping, checks network health, and evaluates bells on the
// minute edge. Everything runs on this single thread of execution; blocking
// operations (relay holds, fetches, sync retries) stall the whole tick by
// design.
package loop

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/bell"
	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/config"
	"github.com/eddwatts/BellTimer/internal/display"
	"github.com/eddwatts/BellTimer/internal/eventlog"
	"github.com/eddwatts/BellTimer/internal/fetch"
	"github.com/eddwatts/BellTimer/internal/metrics"
	"github.com/eddwatts/BellTimer/internal/model"
	"github.com/eddwatts/BellTimer/internal/platform"
	"github.com/eddwatts/BellTimer/internal/provision"
	"github.com/eddwatts/BellTimer/internal/relay"
	"github.com/eddwatts/BellTimer/internal/state"
	"github.com/eddwatts/BellTimer/internal/store"
	"github.com/eddwatts/BellTimer/internal/touch"
	"github.com/eddwatts/BellTimer/internal/web"
)

const (
	wifiCheckInterval = 5 * time.Minute
	rssiCheckInterval = 30 * time.Second
	wifiConnectWait   = 15 // seconds to wait for association
)

// sleep is swappable so tests can tick without real delays.
var sleep = time.Sleep

type Controller struct {
	cfg      *config.Config
	st       *state.DeviceState
	clk      *clock.Service
	store    *store.Store
	fetcher  *fetch.Fetcher
	actuator *relay.Actuator
	disp     *display.Display
	sampler  platform.TouchSampler
	netw     platform.Network
	wdt      platform.Watchdog
	web      *web.Server
	events   *eventlog.Log

	touchState    touch.State
	lastMinute    int
	lastWifiCheck time.Time
	lastRSSICheck time.Time
}

func New(cfg *config.Config, st *state.DeviceState, clk *clock.Service, str *store.Store,
	fetcher *fetch.Fetcher, actuator *relay.Actuator, disp *display.Display,
	sampler platform.TouchSampler, netw platform.Network, wdt platform.Watchdog,
	srv *web.Server, events *eventlog.Log) *Controller {
	return &Controller{
		cfg:           cfg,
		st:            st,
		clk:           clk,
		store:         str,
		fetcher:       fetcher,
		actuator:      actuator,
		disp:          disp,
		sampler:       sampler,
		netw:          netw,
		wdt:           wdt,
		web:           srv,
		events:        events,
		lastMinute:    -1,
		lastWifiCheck: time.Now(),
		lastRSSICheck: time.Now(),
	}
}

// Startup brings the controller online: join WiFi, sync the clock, pull the
// schedule. A connect failure is not fatal; the controller keeps running on
// its cached schedule with the Setup button armed.
func (c *Controller) Startup() {
	if !c.connectWiFi() {
		c.events.Append("warn", "wifi connect failed at boot")
		return
	}
	c.syncAndFetch()
}

// Run drives ticks forever.
func (c *Controller) Run() {
	interval := time.Duration(c.cfg.PollIntervalMillis) * time.Millisecond
	for {
		c.Tick(time.Now())
		sleep(interval)
	}
}

// Tick is one pass of the cooperative schedule.
func (c *Controller) Tick(now time.Time) {
	c.wdt.Feed()

	if !c.st.WifiFailed {
		c.web.PollOnce()
	}

	c.runTouch(now)

	c.disp.ManagePower(now)
	c.disp.ManageShift(now)

	if !c.st.WifiFailed {
		c.checkNetworkHealth(now)
	}

	lt := c.clk.LocalNow()
	if lt.Min != c.lastMinute {
		c.lastMinute = lt.Min
		c.onMinuteEdge(lt)
	}
}

// onMinuteEdge runs once per distinct minute regardless of tick rate.
func (c *Controller) onMinuteEdge(lt clock.LocalTime) {
	if c.disp.On() {
		c.disp.Render()
	}

	if c.st.Holiday {
		return
	}

	if !c.st.WifiFailed && c.cfg.AutoResyncTime != "" && lt.HHMM() == c.cfg.AutoResyncTime {
		c.syncAndFetch()
	}

	c.evaluateBells(lt)
}

// evaluateBells actuates every due event carrying a relay, strictly
// sequentially in schedule order, then recomputes the next bell.
func (c *Controller) evaluateBells(lt clock.LocalTime) {
	due := bell.Due(c.st.Schedule, lt)
	fired := false
	for _, ev := range due {
		if ev.Relay == 0 {
			continue
		}
		c.wdt.Feed()
		c.fireBell(ev)
		fired = true
	}
	if fired {
		c.st.NextBell = bell.Next(c.st.Schedule, c.clk.LocalNow())
		c.disp.SetStatus("Idle", display.Green)
	}
}

func (c *Controller) fireBell(ev model.BellEvent) {
	c.disp.SetStatus(fmt.Sprintf("Relay %d ON", ev.Relay), display.Orange)
	duration := time.Duration(ev.BellLength) * time.Second

	if err := c.actuator.Activate(ev.Relay, duration); err != nil {
		log.Error().Err(err).Str("bell", ev.BellName).Int("channel", ev.Relay).Msg("Bell actuation failed")
		c.events.Append("error", fmt.Sprintf("bell %q failed on relay %d", ev.BellName, ev.Relay))
		return
	}

	log.Info().Str("bell", ev.BellName).Str("time", ev.Time).Int("channel", ev.Relay).Msg("Bell fired")
	c.events.Append("info", fmt.Sprintf("bell %q fired on relay %d", ev.BellName, ev.Relay))
	metrics.Count("bell.fired", 1, fmt.Sprintf("channel:%d", ev.Relay))
}

// runTouch advances the touch FSM one step and executes its effects.
func (c *Controller) runTouch(now time.Time) {
	x, y, touching := c.sampler.Poll()
	next, eff := touch.Transition(c.touchState, touch.Sample{X: x, Y: y, Touching: touching}, touch.Input{
		Now:                now,
		DisplayOn:          c.disp.On(),
		ConnectivityFailed: c.st.WifiFailed,
		Layout:             c.disp.Layout(),
	})
	c.touchState = next

	if eff.WakeDisplay {
		c.disp.Wake()
	}
	if eff.HighlightButton != touch.ButtonNone {
		c.disp.HighlightButton(eff.HighlightButton)
	}
	if eff.ToggleHoliday {
		c.setHoliday(!c.st.Holiday)
	}
	if eff.EnterSetup {
		// Setup mode serves its form on the control port, so release it
		// first and take it back once provisioning returns.
		c.web.Close()
		if err := provision.Run(c.netw, c.store, c.disp, c.wdt, c.cfg.ListenAddr, c.cfg.SetupAPName); err != nil {
			log.Error().Err(err).Msg("Setup mode failed")
			c.disp.SetStatus("Setup Fail", display.Red)
		}
		if err := c.web.Listen(); err != nil {
			log.Error().Err(err).Msg("Failed to rebind control port after setup")
		}
	}
	if eff.SyncAndFetch {
		c.syncAndFetch()
	}
	if eff.RefreshDisplay {
		c.disp.Render()
	}
}

func (c *Controller) setHoliday(on bool) {
	c.st.Holiday = on
	if err := c.store.SaveHoliday(on); err != nil {
		// in-memory state still changed; persistence is best-effort
		log.Warn().Err(err).Msg("Failed to persist holiday mode")
	}
	word := "off"
	if on {
		word = "on"
	}
	log.Info().Bool("holiday", on).Msg("Holiday mode toggled via touch")
	c.events.Append("info", "holiday mode "+word)
}

// syncAndFetch is the manual and scheduled resync path: NTP first, then the
// schedule, with the display tracking progress.
func (c *Controller) syncAndFetch() {
	c.disp.SetStatus("Syncing time...", display.Yellow)
	if c.clk.SyncWithRetries(3, c.wdt) {
		c.st.LastSync = c.clk.LocalNow().HHMM()
	} else {
		c.disp.SetStatus("NTP Sync Fail", display.Red)
	}

	c.disp.SetStatus("Fetching...", display.Yellow)
	if err := c.fetcher.Refresh(); err != nil {
		log.Error().Err(err).Msg("Schedule fetch failed")
		c.events.Append("warn", "schedule fetch failed: "+err.Error())
		c.disp.SetStatus("Fetch Fail", display.Orange)
		return
	}
	c.disp.SetStatus("Idle", display.Green)
}

// checkNetworkHealth reconnects a dropped association and samples signal
// strength on their own fixed intervals.
func (c *Controller) checkNetworkHealth(now time.Time) {
	if now.Sub(c.lastWifiCheck) > wifiCheckInterval {
		c.lastWifiCheck = now
		if !c.netw.Connected() {
			log.Warn().Msg("WiFi association lost, reconnecting")
			c.connectWiFi()
		}
	}
	if now.Sub(c.lastRSSICheck) > rssiCheckInterval {
		c.lastRSSICheck = now
		if c.netw.Connected() {
			c.st.RSSI = c.netw.SignalStrength()
			metrics.Gauge("wifi.rssi", float64(c.st.RSSI))
		}
	}
}

// connectWiFi joins the stored network (or the configured fallback) with a
// bounded wait, feeding the watchdog while it blocks.
func (c *Controller) connectWiFi() bool {
	creds, ok := c.store.LoadCredentials()
	if !ok {
		creds = model.Credentials{SSID: c.cfg.WifiSSID, Password: c.cfg.WifiPassword}
	}

	c.disp.SetStatus("Connecting...", display.Yellow)
	if err := c.netw.Connect(creds.SSID, creds.Password); err != nil {
		log.Warn().Err(err).Str("ssid", creds.SSID).Msg("WiFi connect request failed")
	}

	for i := 0; i < wifiConnectWait; i++ {
		c.wdt.Feed()
		if c.netw.Connected() {
			c.st.WifiFailed = false
			c.st.IPAddress = c.netw.IPAddress()
			log.Info().Str("ip", c.st.IPAddress).Msg("WiFi connected")
			c.disp.SetStatus("WiFi Connected", display.Green)
			return true
		}
		sleep(time.Second)
	}

	c.st.WifiFailed = true
	c.st.IPAddress = "Failed"
	log.Error().Str("ssid", creds.SSID).Msg("WiFi connect failed")
	c.disp.SetStatus("WiFi Connect Fail", display.Red)
	return false
}
