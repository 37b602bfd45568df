package relay

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/metrics"
	"github.com/eddwatts/BellTimer/internal/platform"
	"github.com/eddwatts/BellTimer/internal/state"
)

// sleep is swappable so tests don't hold relays for real durations.
var sleep = time.Sleep

// Actuator drives the bell relays. An activation holds the calling thread of
// execution for its full duration; that stall is the loop's ordering
// guarantee that no two relays fire in parallel.
type Actuator struct {
	out             platform.RelayOutput
	st              *state.DeviceState
	defaultDuration time.Duration
}

func New(out platform.RelayOutput, st *state.DeviceState, defaultDuration time.Duration) *Actuator {
	return &Actuator{out: out, st: st, defaultDuration: defaultDuration}
}

// Activate energizes a channel for the given duration (the configured
// default when zero), updating the observable status before and after.
func (a *Actuator) Activate(channel int, duration time.Duration) error {
	rs, ok := a.st.Relays[channel]
	if !ok {
		return fmt.Errorf("unknown relay channel %d", channel)
	}
	if duration <= 0 {
		duration = a.defaultDuration
	}

	log.Info().Int("channel", channel).Dur("duration", duration).Msg("Energizing relay")
	if err := a.out.Energize(channel); err != nil {
		return fmt.Errorf("failed to energize relay %d: %w", channel, err)
	}
	rs.On = true
	rs.LastChanged = time.Now()

	sleep(duration)

	err := a.out.DeEnergize(channel)
	rs.On = false
	rs.LastChanged = time.Now()
	if err != nil {
		return fmt.Errorf("failed to de-energize relay %d: %w", channel, err)
	}

	metrics.Count("relay.activated", 1, fmt.Sprintf("channel:%d", channel))
	return nil
}
