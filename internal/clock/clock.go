package clock

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/model"
	"github.com/eddwatts/BellTimer/internal/platform"
)

// LocalTime is DST-corrected local calendar time. Weekday uses Monday = 0 to
// match the schedule document keys.
type LocalTime struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Min     int
	Sec     int
	Weekday int
}

func (lt LocalTime) HHMM() string {
	return fmt.Sprintf("%02d:%02d", lt.Hour, lt.Min)
}

func (lt LocalTime) MinuteOfDay() int {
	return lt.Hour*60 + lt.Min
}

func (lt LocalTime) DayName() string {
	return model.DayNames[lt.Weekday]
}

func (lt LocalTime) DateString() string {
	return fmt.Sprintf("%s %02d/%02d/%d", lt.DayName(), lt.Day, lt.Month, lt.Year)
}

func (lt LocalTime) ClockString() string {
	return fmt.Sprintf("%02d:%02d:%02d", lt.Hour, lt.Min, lt.Sec)
}

func (lt LocalTime) Timestamp() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", lt.Year, lt.Month, lt.Day, lt.Hour, lt.Min, lt.Sec)
}

// Service produces local time from the raw UTC source, applying the UK DST
// rule. No side effects.
type Service struct {
	src platform.TimeSource
}

func New(src platform.TimeSource) *Service {
	return &Service{src: src}
}

func (s *Service) LocalNow() LocalTime {
	return FromUTC(s.src.Now())
}

// FromUTC converts a raw UTC instant into DST-corrected local time.
func FromUTC(utc time.Time) LocalTime {
	utc = utc.UTC()
	if IsBST(utc) {
		utc = utc.Add(time.Hour)
	}
	return LocalTime{
		Year:    utc.Year(),
		Month:   int(utc.Month()),
		Day:     utc.Day(),
		Hour:    utc.Hour(),
		Min:     utc.Minute(),
		Sec:     utc.Second(),
		Weekday: (int(utc.Weekday()) + 6) % 7,
	}
}

// IsBST reports whether British Summer Time applies at the given UTC
// instant: from the last Sunday in March 01:00 UTC through the last Sunday
// in October 01:00 UTC.
func IsBST(utc time.Time) bool {
	month := int(utc.Month())
	switch {
	case month < 3 || month > 10:
		return false
	case month > 3 && month < 10:
		return true
	case month == 3:
		ls := lastSunday(utc.Year(), time.March)
		return utc.Day() > ls || (utc.Day() == ls && utc.Hour() >= 1)
	default: // October
		ls := lastSunday(utc.Year(), time.October)
		return utc.Day() < ls || (utc.Day() == ls && utc.Hour() < 1)
	}
}

// lastSunday returns the day of month of the last Sunday. Both March and
// October have 31 days.
func lastSunday(year int, month time.Month) int {
	end := time.Date(year, month, 31, 0, 0, 0, 0, time.UTC)
	return 31 - int(end.Weekday())
}

// retrySleep is swappable so sync tests don't wait out real backoff.
var retrySleep = time.Sleep

// SyncWithRetries resyncs the raw time source, feeding the watchdog between
// bounded attempts. Reports whether any attempt succeeded.
func (s *Service) SyncWithRetries(attempts int, wdt platform.Watchdog) bool {
	for i := 0; i < attempts; i++ {
		wdt.Feed()
		if err := s.src.Sync(); err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("Time sync attempt failed")
			retrySleep(3 * time.Second)
			continue
		}
		log.Info().Msg("Time synced")
		return true
	}
	log.Error().Int("attempts", attempts).Msg("Time sync failed")
	return false
}
