package fetch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/model"
	"github.com/eddwatts/BellTimer/internal/state"
	"github.com/eddwatts/BellTimer/internal/store"
)

type fakeHTTP struct {
	responses map[string][]byte
	errs      map[string]error
	requests  []string
}

func (f *fakeHTTP) GetJSON(url string) ([]byte, error) {
	f.requests = append(f.requests, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.responses[url]
	if !ok {
		return nil, errors.New("unexpected url " + url)
	}
	return body, nil
}

type memKV struct{ data map[string][]byte }

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

type fixedTime struct{ t time.Time }

func (f fixedTime) Now() time.Time { return f.t }
func (f fixedTime) Sync() error    { return nil }

const manifestURL = "https://example.com/manifest.json"

var goodManifest = []byte(`{
	"base_url": "https://example.com/bells/",
	"schedules": {
		"Normal Day": "normal.json",
		"Half Day": "half.json"
	}
}`)

var goodSchedule = []byte(`{"0": [{"time": "08:30", "bellname": "Period1", "relay": 1, "belllength": 2}]}`)

func newFetcher(http *fakeHTTP) (*Fetcher, *state.DeviceState, *memKV) {
	st := &state.DeviceState{ActiveSchedule: "Normal Day"}
	kv := &memKV{data: map[string][]byte{}}
	clk := clock.New(fixedTime{t: time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)})
	return New(http, st, store.New(kv), clk, manifestURL), st, kv
}

func TestRefresh_ReplacesScheduleAndNextBell(t *testing.T) {
	http := &fakeHTTP{responses: map[string][]byte{
		manifestURL:                             goodManifest,
		"https://example.com/bells/normal.json": goodSchedule,
	}}
	f, st, kv := newFetcher(http)

	require.NoError(t, f.Refresh())
	require.NotNil(t, st.Manifest)
	assert.Equal(t, []string{"Normal Day", "Half Day"}, st.Manifest.Names())
	require.Len(t, st.Schedule[0], 1)
	assert.Equal(t, "Period1", st.Schedule[0][0].BellName)
	require.NotNil(t, st.NextBell)
	assert.Equal(t, "08:30", st.NextBell.Event.Time)
	assert.NotEmpty(t, kv.data["schedule.json"], "schedule cached for offline boot")
}

func TestRefresh_ManifestFetchFailureLeavesStateUntouched(t *testing.T) {
	http := &fakeHTTP{errs: map[string]error{manifestURL: errors.New("timeout")}}
	f, st, _ := newFetcher(http)
	st.Schedule = model.Schedule{0: {{Time: "09:00", Relay: 1}}}

	err := f.Refresh()
	assert.Error(t, err)
	assert.Nil(t, st.Manifest)
	assert.Equal(t, "09:00", st.Schedule[0][0].Time, "existing schedule survives a failed fetch")
}

func TestRefresh_InvalidManifestRejectedWholesale(t *testing.T) {
	http := &fakeHTTP{responses: map[string][]byte{
		manifestURL: []byte(`{"schedules": {"Normal Day": "normal.json"}}`),
	}}
	f, st, _ := newFetcher(http)

	assert.Error(t, f.Refresh())
	assert.Nil(t, st.Manifest)
	assert.Equal(t, "Normal Day", st.ActiveSchedule)
	assert.Len(t, http.requests, 1, "no schedule download after a rejected manifest")
}

func TestRefresh_ActiveNameFallsBackToFirstEntry(t *testing.T) {
	http := &fakeHTTP{responses: map[string][]byte{
		manifestURL:                             goodManifest,
		"https://example.com/bells/normal.json": goodSchedule,
	}}
	f, st, kv := newFetcher(http)
	st.ActiveSchedule = "Snow Day"

	require.NoError(t, f.Refresh())
	assert.Equal(t, "Normal Day", st.ActiveSchedule)
	assert.Equal(t, "Normal Day", string(kv.data["active_schedule.txt"]), "fallback choice persisted")
}

func TestRefresh_ScheduleFetchFailureKeepsOldSchedule(t *testing.T) {
	http := &fakeHTTP{
		responses: map[string][]byte{manifestURL: goodManifest},
		errs:      map[string]error{"https://example.com/bells/normal.json": errors.New("500")},
	}
	f, st, _ := newFetcher(http)
	old := model.Schedule{2: {{Time: "10:45", BellName: "Break", Relay: 1}}}
	st.Schedule = old

	err := f.Refresh()
	assert.Error(t, err)
	assert.Equal(t, old, st.Schedule)
	require.NotNil(t, st.Manifest, "validated manifest may advance even when the schedule fetch fails")
}

func TestRefresh_MalformedScheduleKeepsOldSchedule(t *testing.T) {
	http := &fakeHTTP{responses: map[string][]byte{
		manifestURL:                             goodManifest,
		"https://example.com/bells/normal.json": []byte(`{"0": [{"time": "25:99"}]}`),
	}}
	f, st, _ := newFetcher(http)
	old := model.Schedule{2: {{Time: "10:45", Relay: 1}}}
	st.Schedule = old

	assert.Error(t, f.Refresh())
	assert.Equal(t, old, st.Schedule)
}
