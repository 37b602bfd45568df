package state

import (
	"fmt"
	"time"

	"github.com/eddwatts/BellTimer/internal/config"
	"github.com/eddwatts/BellTimer/internal/model"
)

// RelayState is the observable status of one bell channel.
type RelayState struct {
	On          bool
	LastChanged time.Time
}

// DeviceState is the single owned mutable state of the controller. It is
// held by the orchestration loop and touched only from its thread of
// execution, so no locking applies; mutators must leave it fully consistent
// before returning.
type DeviceState struct {
	Schedule       model.Schedule
	Manifest       *model.Manifest
	ActiveSchedule string
	Holiday        bool
	NextBell       *model.NextBell

	Relays map[int]*RelayState

	SessionToken string

	StatusLine  string
	StatusColor uint16
	IPAddress   string
	RSSI        int
	LastSync    string
	WifiFailed  bool

	BootTime time.Time
}

func New(cfg *config.Config) *DeviceState {
	relays := make(map[int]*RelayState, len(cfg.Relays))
	for _, r := range cfg.Relays {
		relays[r.Channel] = &RelayState{}
	}
	return &DeviceState{
		Schedule:       model.Schedule{},
		ActiveSchedule: "Default",
		Relays:         relays,
		StatusLine:     "Booting...",
		IPAddress:      "Connecting...",
		LastSync:       "Never",
		BootTime:       time.Now(),
	}
}

// Uptime renders elapsed time since boot for the diagnostics page.
func (s *DeviceState) Uptime() string {
	secs := int(time.Since(s.BootTime).Seconds())
	d, h, m := secs/86400, (secs%86400)/3600, (secs%3600)/60
	return fmt.Sprintf("%dd %dh %dm %ds", d, h, m, secs%60)
}
