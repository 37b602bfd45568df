package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddwatts/BellTimer/internal/model"
)

// memKV is an in-memory byte store for exercising the load/save contract.
type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) LoadBytes(key string) ([]byte, error) {
	b, ok := m.data[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (m *memKV) SaveBytes(key string, data []byte) error {
	m.data[key] = data
	return nil
}

func TestSchedule_RoundTrip(t *testing.T) {
	s := New(newMemKV())
	in := model.Schedule{0: {{Time: "08:30", BellName: "Period1", Relay: 1, BellLength: 2}}}

	require.NoError(t, s.SaveSchedule(in))
	assert.Equal(t, in, s.LoadSchedule())
}

func TestSchedule_AbsentOrCorruptFallsBackEmpty(t *testing.T) {
	kv := newMemKV()
	s := New(kv)
	assert.Empty(t, s.LoadSchedule())

	kv.data["schedule.json"] = []byte(`{"9": []}`)
	assert.Empty(t, s.LoadSchedule())

	kv.data["schedule.json"] = []byte(`garbage`)
	assert.Empty(t, s.LoadSchedule())
}

func TestHoliday_DefaultsOff(t *testing.T) {
	kv := newMemKV()
	s := New(kv)
	assert.False(t, s.LoadHoliday())

	require.NoError(t, s.SaveHoliday(true))
	assert.Equal(t, "1", string(kv.data["holiday.dat"]))
	assert.True(t, s.LoadHoliday())

	require.NoError(t, s.SaveHoliday(false))
	assert.False(t, s.LoadHoliday())

	// Anything that isn't the on marker reads as off.
	kv.data["holiday.dat"] = []byte("yes")
	assert.False(t, s.LoadHoliday())
}

func TestActiveSchedule_EmptyMeansUnset(t *testing.T) {
	s := New(newMemKV())
	assert.Equal(t, "", s.LoadActiveSchedule())

	require.NoError(t, s.SaveActiveSchedule("Half Day"))
	assert.Equal(t, "Half Day", s.LoadActiveSchedule())
}

func TestCredentials_RoundTripAndFallback(t *testing.T) {
	kv := newMemKV()
	s := New(kv)

	_, ok := s.LoadCredentials()
	assert.False(t, ok)

	in := model.Credentials{SSID: "SchoolNet", Password: "chalkdust"}
	require.NoError(t, s.SaveCredentials(in))
	out, ok := s.LoadCredentials()
	assert.True(t, ok)
	assert.Equal(t, in, out)

	kv.data["wifi.json"] = []byte("{broken")
	_, ok = s.LoadCredentials()
	assert.False(t, ok)
}
