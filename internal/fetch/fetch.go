// Package fetch retrieves the schedule manifest and the active schedule
// document. On any failure at any step the in-memory and persisted schedule
// state is left untouched; the currently active schedule is never discarded
// for a failed fetch.
package fetch

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/bell"
	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/metrics"
	"github.com/eddwatts/BellTimer/internal/model"
	"github.com/eddwatts/BellTimer/internal/platform"
	"github.com/eddwatts/BellTimer/internal/state"
	"github.com/eddwatts/BellTimer/internal/store"
)

type Fetcher struct {
	client      platform.SecureHTTP
	store       *store.Store
	st          *state.DeviceState
	clk         *clock.Service
	manifestURL string
}

func New(client platform.SecureHTTP, st *state.DeviceState, str *store.Store, clk *clock.Service, manifestURL string) *Fetcher {
	return &Fetcher{
		client:      client,
		store:       str,
		st:          st,
		clk:         clk,
		manifestURL: manifestURL,
	}
}

// Refresh fetches the manifest and the active schedule. A nil return means
// the schedule was replaced; any error means nothing changed on the
// schedule side (the manifest and active name may have advanced, since both
// are validated before the schedule download starts).
func (f *Fetcher) Refresh() error {
	body, err := f.client.GetJSON(f.manifestURL)
	if err != nil {
		metrics.Count("schedule.fetch.failure", 1, "stage:manifest")
		return fmt.Errorf("manifest fetch: %w", err)
	}

	man, err := model.ParseManifest(body)
	if err != nil {
		metrics.Count("schedule.fetch.failure", 1, "stage:manifest")
		return fmt.Errorf("manifest rejected: %w", err)
	}
	f.st.Manifest = man

	if !man.Has(f.st.ActiveSchedule) {
		first := man.First().Name
		log.Info().
			Str("previous", f.st.ActiveSchedule).
			Str("selected", first).
			Msg("Active schedule absent from manifest, selecting first entry")
		f.st.ActiveSchedule = first
		if err := f.store.SaveActiveSchedule(first); err != nil {
			log.Warn().Err(err).Msg("Failed to persist active schedule name")
		}
	}

	file, _ := man.Lookup(f.st.ActiveSchedule)
	scheduleURL := man.BaseURL + file

	body, err = f.client.GetJSON(scheduleURL)
	if err != nil {
		metrics.Count("schedule.fetch.failure", 1, "stage:schedule")
		return fmt.Errorf("schedule fetch: %w", err)
	}

	sched, err := model.ParseSchedule(body)
	if err != nil {
		metrics.Count("schedule.fetch.failure", 1, "stage:schedule")
		return fmt.Errorf("schedule rejected: %w", err)
	}

	f.st.Schedule = sched
	if err := f.store.SaveSchedule(sched); err != nil {
		log.Warn().Err(err).Msg("Failed to persist schedule cache")
	}
	f.st.NextBell = bell.Next(sched, f.clk.LocalNow())

	metrics.Count("schedule.fetch.success", 1)
	log.Info().
		Str("schedule", f.st.ActiveSchedule).
		Int("days", len(sched)).
		Msg("Schedule updated")
	return nil
}
