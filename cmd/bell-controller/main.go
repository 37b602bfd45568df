package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/auth"
	"github.com/eddwatts/BellTimer/internal/bell"
	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/config"
	"github.com/eddwatts/BellTimer/internal/display"
	"github.com/eddwatts/BellTimer/internal/eventlog"
	"github.com/eddwatts/BellTimer/internal/fetch"
	"github.com/eddwatts/BellTimer/internal/httpsclient"
	"github.com/eddwatts/BellTimer/internal/logging"
	"github.com/eddwatts/BellTimer/internal/loop"
	"github.com/eddwatts/BellTimer/internal/metrics"
	"github.com/eddwatts/BellTimer/internal/platform"
	"github.com/eddwatts/BellTimer/internal/relay"
	"github.com/eddwatts/BellTimer/internal/state"
	"github.com/eddwatts/BellTimer/internal/store"
	"github.com/eddwatts/BellTimer/internal/update"
	"github.com/eddwatts/BellTimer/internal/web"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("manifest_url", cfg.ManifestURL).
		Int("relays", len(cfg.Relays)).
		Msg("Starting bell controller")

	metrics.Init(cfg.DDAgentAddr, cfg.DDNamespace, cfg.DDTags, cfg.EnableDatadog)

	events, err := eventlog.Open(cfg.EventLogPath, cfg.EventLogMaxRows)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open event log")
	}
	defer events.Close()
	events.Append("info", "controller booting")

	// host capabilities; the panel and touch drivers register here when the
	// display hardware is fitted
	wdt := platform.StartWatchdog(time.Duration(cfg.WatchdogTimeoutMillis) * time.Millisecond)
	netw := platform.NewNmcliNetwork(cfg.WifiInterface)
	relays := platform.NewPinctrlRelay(cfg.RelayPins())
	timeSource := platform.NewSystemTime(cfg.NTPHost)
	var surface platform.RenderSurface = platform.NullSurface{}
	var backlight platform.DisplayPower = platform.NullBacklight{}
	var sampler platform.TouchSampler = platform.NullTouch{}

	clk := clock.New(timeSource)
	str := store.New(platform.NewFileStore(cfg.DataDir))

	st := state.New(&cfg)
	st.Holiday = str.LoadHoliday()
	st.Schedule = str.LoadSchedule()
	if name := str.LoadActiveSchedule(); name != "" {
		st.ActiveSchedule = name
	}
	st.NextBell = bell.Next(st.Schedule, clk.LocalNow())

	log.Info().
		Str("active_schedule", st.ActiveSchedule).
		Bool("holiday", st.Holiday).
		Int("cached_days", len(st.Schedule)).
		Msg("Loaded persisted state")

	disp := display.New(surface, backlight, st, clk, cfg.DisplayWidth, cfg.DisplayHeight,
		time.Duration(cfg.ScreenOffTimeoutSeconds)*time.Second,
		time.Duration(cfg.PixelShiftIntervalSeconds)*time.Second)

	client := httpsclient.New(wdt)
	fetcher := fetch.New(client, st, str, clk, cfg.ManifestURL)
	actuator := relay.New(relays, st, time.Duration(cfg.DefaultBellSeconds)*time.Second)
	guard := auth.New(cfg.PresharedKey, cfg.PasswordHash, st)
	updates := update.NewChecker(client, cfg.UpdateVersionURL, cfg.Version)

	srv := web.NewServer(guard, st, str, clk, fetcher, actuator, disp, events, updates, wdt, &cfg)
	if err := srv.Listen(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start control surface")
	}
	defer srv.Close()

	ctrl := loop.New(&cfg, st, clk, str, fetcher, actuator, disp, sampler, netw, wdt, srv, events)
	ctrl.Startup()
	ctrl.Run()
}
