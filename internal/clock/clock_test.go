package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsBST_WinterAndSummer(t *testing.T) {
	assert.False(t, IsBST(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)))
	assert.True(t, IsBST(time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsBST(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestIsBST_MarchTransition(t *testing.T) {
	// Last Sunday of March 2025 is the 30th; clocks advance at 01:00 UTC.
	assert.False(t, IsBST(time.Date(2025, 3, 30, 0, 59, 0, 0, time.UTC)))
	assert.True(t, IsBST(time.Date(2025, 3, 30, 1, 0, 0, 0, time.UTC)))
	assert.False(t, IsBST(time.Date(2025, 3, 29, 12, 0, 0, 0, time.UTC)))
	assert.True(t, IsBST(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))
}

func TestIsBST_OctoberTransition(t *testing.T) {
	// Last Sunday of October 2025 is the 26th; clocks revert at 01:00 UTC.
	assert.True(t, IsBST(time.Date(2025, 10, 26, 0, 59, 0, 0, time.UTC)))
	assert.False(t, IsBST(time.Date(2025, 10, 26, 1, 0, 0, 0, time.UTC)))
	assert.True(t, IsBST(time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsBST(time.Date(2025, 10, 27, 12, 0, 0, 0, time.UTC)))
}

func TestFromUTC_AppliesSummerOffset(t *testing.T) {
	lt := FromUTC(time.Date(2025, 7, 14, 8, 30, 15, 0, time.UTC))
	assert.Equal(t, 9, lt.Hour)
	assert.Equal(t, 30, lt.Min)
	assert.Equal(t, 0, lt.Weekday) // 2025-07-14 is a Monday
	assert.Equal(t, "Mon", lt.DayName())
	assert.Equal(t, "09:30", lt.HHMM())
}

func TestFromUTC_WeekdayMondayZero(t *testing.T) {
	// 2025-01-05 is a Sunday
	lt := FromUTC(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, 6, lt.Weekday)
	assert.Equal(t, "Sun", lt.DayName())
}

func TestLocalTime_MinuteOfDay(t *testing.T) {
	lt := LocalTime{Hour: 8, Min: 29}
	assert.Equal(t, 509, lt.MinuteOfDay())
}

type fakeTimeSource struct {
	now      time.Time
	syncErrs []error
	calls    int
}

func (f *fakeTimeSource) Now() time.Time { return f.now }

func (f *fakeTimeSource) Sync() error {
	defer func() { f.calls++ }()
	if f.calls < len(f.syncErrs) {
		return f.syncErrs[f.calls]
	}
	return nil
}

type fakeWatchdog struct{ feeds int }

func (f *fakeWatchdog) Feed() { f.feeds++ }

func TestSyncWithRetries_RecoversAfterFailure(t *testing.T) {
	restore := retrySleep
	retrySleep = func(time.Duration) {}
	defer func() { retrySleep = restore }()

	src := &fakeTimeSource{syncErrs: []error{errors.New("ntp down"), nil}}
	wdt := &fakeWatchdog{}
	svc := New(src)

	assert.True(t, svc.SyncWithRetries(3, wdt))
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 2, wdt.feeds)
}

func TestSyncWithRetries_BoundedFailure(t *testing.T) {
	restore := retrySleep
	retrySleep = func(time.Duration) {}
	defer func() { retrySleep = restore }()

	src := &fakeTimeSource{syncErrs: []error{errors.New("x"), errors.New("x"), errors.New("x")}}
	svc := New(src)

	assert.False(t, svc.SyncWithRetries(3, &fakeWatchdog{}))
	assert.Equal(t, 3, src.calls)
}
