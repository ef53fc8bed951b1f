package liveness

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

// answeringProbe simulates a peer that always answers pings in time.
func answeringProbe(ctx context.Context) error {
	return nil
}

// silentProbe simulates a peer that never answers: the probe only returns
// when its deadline expires.
func silentProbe(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestAnsweredProbesKeepConnectionAlive(t *testing.T) {
	req := require.New(t)
	var deaths atomic.Int32

	m := NewMonitor(answeringProbe, 5*time.Millisecond, 2*time.Millisecond,
		func(error) { deaths.Add(1) }, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// Survive many probe cycles.
	time.Sleep(60 * time.Millisecond)
	req.Equal(int32(0), deaths.Load())
	req.NotEqual(StateDead, m.State())

	cancel()
	<-done
	req.Equal(int32(0), deaths.Load(), "owner cancellation must not fire the death callback")
	req.Equal(StateDead, m.State())
}

func TestMissedPongDeclaresDeadExactlyOnce(t *testing.T) {
	req := require.New(t)
	var deaths atomic.Int32
	var reason error

	m := NewMonitor(silentProbe, 5*time.Millisecond, 2*time.Millisecond,
		func(err error) {
			deaths.Add(1)
			reason = err
		}, testLogger())

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not terminate after a missed pong")
	}

	req.Equal(int32(1), deaths.Load())
	req.Equal(StateDead, m.State())
	req.True(m.Evicted())
	req.ErrorIs(reason, context.DeadlineExceeded)

	// A pong arriving after death changes nothing; the machine is terminal.
	m.Stop()
	req.Equal(int32(1), deaths.Load())
}

func TestStopSuppressesDeathCallback(t *testing.T) {
	req := require.New(t)
	var deaths atomic.Int32

	// A probe slow enough that Stop lands while it is in flight.
	m := NewMonitor(silentProbe, 2*time.Millisecond, 50*time.Millisecond,
		func(error) { deaths.Add(1) }, testLogger())

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond) // let the first probe start
	m.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not terminate after Stop")
	}

	req.Equal(int32(0), deaths.Load(), "Stop must not fire the death callback")
	req.Equal(StateDead, m.State())
	req.False(m.Evicted())
}

func TestStopIsSafeFromAnyState(t *testing.T) {
	m := NewMonitor(answeringProbe, time.Millisecond, time.Millisecond, nil, testLogger())
	// Never run: Stop on a fresh monitor must not panic.
	m.Stop()
	m.Stop()
}

func TestTransitionsAreObservable(t *testing.T) {
	req := require.New(t)

	probeStarted := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	probe := func(ctx context.Context) error {
		startedOnce.Do(func() { close(probeStarted) })
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m := NewMonitor(probe, 5*time.Millisecond, time.Second, nil, testLogger())
	req.Equal(StateAlive, m.State())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	<-probeStarted
	req.Equal(StateAwaitingPong, m.State())

	close(release)
	req.Eventually(func() bool { return m.State() == StateAlive },
		time.Second, time.Millisecond, "pong should transition back to ALIVE")
}

func TestStateStrings(t *testing.T) {
	req := require.New(t)
	req.Equal("ALIVE", StateAlive.String())
	req.Equal("AWAITING_PONG", StateAwaitingPong.String())
	req.Equal("DEAD", StateDead.String())
}

func TestKillReportsFirstReasonOnly(t *testing.T) {
	req := require.New(t)
	var got error
	m := NewMonitor(silentProbe, time.Millisecond, time.Millisecond,
		func(err error) { got = err }, testLogger())

	first := errors.New("first")
	m.kill(first)
	m.kill(errors.New("second"))

	req.Same(first, got)
}
