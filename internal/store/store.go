package store

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/model"
	"github.com/eddwatts/BellTimer/internal/platform"
)

// Persisted entity keys. The formats match what the remote repository and
// earlier firmware wrote, so an in-place upgrade keeps its state.
const (
	keySchedule = "schedule.json"
	keyHoliday  = "holiday.dat"
	keyActive   = "active_schedule.txt"
	keyCreds    = "wifi.json"
)

// Store owns the logical load/save contract for every persisted entity.
// Loads are non-fatal: absence or corruption falls back to a default and is
// logged, never surfaced as a hard error.
type Store struct {
	kv platform.KVStore
}

func New(kv platform.KVStore) *Store {
	return &Store{kv: kv}
}

func (s *Store) LoadSchedule() model.Schedule {
	data, err := s.kv.LoadBytes(keySchedule)
	if err != nil {
		log.Warn().Err(err).Msg("No schedule cache, starting empty")
		return model.Schedule{}
	}
	sched, err := model.ParseSchedule(data)
	if err != nil {
		log.Warn().Err(err).Msg("Schedule cache unreadable, starting empty")
		return model.Schedule{}
	}
	log.Info().Msg("Loaded schedule from cache")
	return sched
}

func (s *Store) SaveSchedule(sched model.Schedule) error {
	data, err := sched.Encode()
	if err != nil {
		return err
	}
	return s.kv.SaveBytes(keySchedule, data)
}

func (s *Store) LoadHoliday() bool {
	data, err := s.kv.LoadBytes(keyHoliday)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

func (s *Store) SaveHoliday(on bool) error {
	marker := "0"
	if on {
		marker = "1"
	}
	return s.kv.SaveBytes(keyHoliday, []byte(marker))
}

// LoadActiveSchedule returns the persisted name, or "" when none is stored
// so the caller can fall back to the manifest's first entry.
func (s *Store) LoadActiveSchedule() string {
	data, err := s.kv.LoadBytes(keyActive)
	if err != nil {
		log.Info().Msg("No active schedule stored, will use first in manifest")
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) SaveActiveSchedule(name string) error {
	return s.kv.SaveBytes(keyActive, []byte(name))
}

func (s *Store) LoadCredentials() (model.Credentials, bool) {
	data, err := s.kv.LoadBytes(keyCreds)
	if err != nil {
		return model.Credentials{}, false
	}
	var creds model.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		log.Warn().Err(err).Msg("Stored credentials unreadable, using fallback")
		return model.Credentials{}, false
	}
	return creds, true
}

func (s *Store) SaveCredentials(creds model.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return s.kv.SaveBytes(keyCreds, data)
}
