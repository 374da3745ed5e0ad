package alertbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSurface() (*Surface, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func TestTransientRevertsToStatusLine(t *testing.T) {
	s, clock := newTestSurface()

	s.Show("Connected to ES es:9200", Success, true)
	s.Show("Alarm x deleted", Success, false)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "Alarm x deleted", cur.Message)

	clock.Advance(4999 * time.Millisecond)
	cur, _ = s.Current()
	assert.Equal(t, "Alarm x deleted", cur.Message)

	clock.Advance(time.Millisecond)
	cur, ok = s.Current()
	require.True(t, ok)
	assert.Equal(t, "Connected to ES es:9200", cur.Message)
	assert.True(t, cur.Persistent)

	prev, ok := s.Previous()
	require.True(t, ok)
	assert.Equal(t, "Alarm x deleted", prev.Message)
}

func TestStackedTransientsRevertToPersistent(t *testing.T) {
	s, clock := newTestSurface()

	s.Show("status line", Info, true)
	s.Show("first", Warning, false)
	clock.Advance(2 * time.Second)
	s.Show("second", Danger, false)

	clock.Advance(3 * time.Second)
	cur, _ := s.Current()
	assert.Equal(t, "second", cur.Message)

	clock.Advance(2 * time.Second)
	cur, _ = s.Current()
	assert.Equal(t, "status line", cur.Message)
}

func TestPersistentReplacesOverlay(t *testing.T) {
	s, clock := newTestSurface()

	s.Show("transient", Warning, false)
	s.Show("Disconnected from ES es:9200: refused", Danger, true)

	clock.Advance(10 * time.Second)
	assert.False(t, s.Expire())

	cur, _ := s.Current()
	assert.Equal(t, "Disconnected from ES es:9200: refused", cur.Message)
}

func TestTransientWithoutStatusLineClears(t *testing.T) {
	s, clock := newTestSurface()

	var seen []Alert
	unsubscribe := s.Subscribe(func(a Alert) { seen = append(seen, a) })

	s.Show("only transient", Warning, false)
	clock.Advance(DefaultTTL)
	assert.True(t, s.Expire())

	_, ok := s.Current()
	assert.False(t, ok)

	require.Len(t, seen, 2)
	assert.Equal(t, "only transient", seen[0].Message)
	assert.Equal(t, Alert{}, seen[1])

	unsubscribe()
	s.Show("after", Info, true)
	assert.Len(t, seen, 2)
}

func TestWithTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	s := New(WithClock(clock.Now), WithTTL(time.Second))

	a := s.Show("short", Info, false)
	assert.Equal(t, time.Unix(1, 0), a.ExpiresAt)
}

func TestSeverityIcon(t *testing.T) {
	assert.Equal(t, "fa-check-circle", Success.Icon())
	assert.Equal(t, "fa-exclamation-triangle", Danger.Icon())
	assert.Equal(t, "fa-exclamation-triangle", Warning.Icon())
}
