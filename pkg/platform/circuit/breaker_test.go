package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("backend")
	assert.Equal(t, "backend", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New("backend", WithFailureThreshold(2))

	open, change := b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)

	open, change = b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.False(t, b.Allow(), "open breaker rejects calls inside cooldown")
}

func TestBreaker_SuccessClearsFailureStreak(t *testing.T) {
	b := New("backend", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
}

func TestBreaker_ProbesAfterCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := New("backend",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCooldown(10*time.Second),
		WithClock(clock.Now),
	)

	b.RecordFailure()
	assert.False(t, b.Allow())

	clock.Advance(10 * time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed lets a probe through")

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailedProbeRestartsCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := New("backend", WithFailureThreshold(1), WithCooldown(5*time.Second), WithClock(clock.Now))

	b.RecordFailure()
	clock.Advance(5 * time.Second)
	assert.True(t, b.Allow())

	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.False(t, change.Opened, "already open, no transition")
	assert.False(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("backend", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}
