package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule_SortsWithinDay(t *testing.T) {
	sched, err := ParseSchedule([]byte(`{
		"0": [
			{"time": "12:30", "bellname": "Lunch", "relay": 1},
			{"time": "08:30", "bellname": "Period1", "relay": 1},
			{"time": "08:30", "bellname": "Doors", "relay": 2}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, sched[0], 3)
	assert.Equal(t, "Period1", sched[0][0].BellName)
	assert.Equal(t, "Doors", sched[0][1].BellName) // stable within equal times
	assert.Equal(t, "Lunch", sched[0][2].BellName)
}

func TestParseSchedule_MissingDaysAllowed(t *testing.T) {
	sched, err := ParseSchedule([]byte(`{"4": [{"time": "15:10", "relay": 1}]}`))
	require.NoError(t, err)
	assert.Len(t, sched, 1)
	assert.Empty(t, sched[2])
}

func TestParseSchedule_Rejections(t *testing.T) {
	cases := map[string]string{
		"bad json":     `{`,
		"weekday 7":    `{"7": []}`,
		"weekday text": `{"mon": []}`,
		"time 24:00":   `{"0": [{"time": "24:00"}]}`,
		"time 8:30":    `{"0": [{"time": "8:30"}]}`,
		"neg relay":    `{"0": [{"time": "08:30", "relay": -1}]}`,
		"neg length":   `{"0": [{"time": "08:30", "belllength": -2}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchedule([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestScheduleEncode_RoundTrips(t *testing.T) {
	in := Schedule{0: {{Time: "08:30", BellName: "Period1", Relay: 1, BellLength: 2}}}
	data, err := in.Encode()
	require.NoError(t, err)

	out, err := ParseSchedule(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseManifest_PreservesDocumentOrder(t *testing.T) {
	man, err := ParseManifest([]byte(`{
		"base_url": "https://example.com/bells/",
		"schedules": {
			"Normal Day": "normal.json",
			"Half Day": "half.json",
			"Exam Day": "exam.json"
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/bells/", man.BaseURL)
	assert.Equal(t, []string{"Normal Day", "Half Day", "Exam Day"}, man.Names())
	assert.Equal(t, "Normal Day", man.First().Name)

	file, ok := man.Lookup("Half Day")
	assert.True(t, ok)
	assert.Equal(t, "half.json", file)
	assert.False(t, man.Has("Snow Day"))
}

func TestParseManifest_Rejections(t *testing.T) {
	cases := map[string]string{
		"bad json":         `not json`,
		"missing base_url": `{"schedules": {"Normal Day": "normal.json"}}`,
		"missing map":      `{"base_url": "https://example.com/"}`,
		"empty map":        `{"base_url": "https://example.com/", "schedules": {}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(payload))
			assert.Error(t, err)
		})
	}
}
