package sentinel

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Borislavv/go-ash-rescache/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type blob struct {
	payload [128]byte
}

func newTestSentinel(opts ...Option) *Sentinel {
	return New(config.SentinelCfg{SuspectAfter: 3, ReleaseLogInterval: time.Second}, zerolog.Nop(), opts...)
}

//go:noinline
func observeTemporary(s *Sentinel, key string) Handle {
	return Observe(s, key, &blob{})
}

// TestSentinel_Observe_Live counts objects that are still referenced.
func TestSentinel_Observe_Live(t *testing.T) {
	s := newTestSentinel()

	objs := []*blob{{}, {}}
	h1 := Observe(s, "widget", objs[0])
	h2 := Observe(s, "widget", objs[1])

	require.NotEqual(t, h1.ID, h2.ID)
	require.True(t, h1.IsLive())
	require.Equal(t, map[string]int{"widget": 2}, s.Stats())

	runtime.KeepAlive(objs)
}

// TestSentinel_Observe_Released drops reclaimed objects from the live count.
func TestSentinel_Observe_Released(t *testing.T) {
	var hooked atomic.Int64
	s := newTestSentinel(WithOnRelease(func(key string) {
		if key == "temp" {
			hooked.Add(1)
		}
	}))

	h := observeTemporary(s, "temp")

	require.Eventually(t, func() bool {
		runtime.GC()
		return !h.IsLive() && hooked.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, 0, s.Stats()["temp"])
	observed, released := s.SentinelMetrics()
	require.Equal(t, int64(1), observed)
	require.Equal(t, int64(1), released)
}

// TestSentinel_Observe_Nil returns a dead handle without recording it.
func TestSentinel_Observe_Nil(t *testing.T) {
	s := newTestSentinel()

	h := Observe[blob](s, "nothing", nil)

	require.False(t, h.IsLive())
	require.Empty(t, s.Stats())
}

// TestSentinel_Audit_Suspected flags a key after consecutive non-decreasing audits.
func TestSentinel_Audit_Suspected(t *testing.T) {
	s := newTestSentinel()

	var held []*blob
	hold := func() {
		b := &blob{}
		held = append(held, b)
		Observe(s, "listener", b)
	}

	hold()
	require.False(t, s.Audit()[0].Suspected)
	hold()
	require.False(t, s.Audit()[0].Suspected)

	reports := s.Audit()
	require.Len(t, reports, 1)
	require.Equal(t, "listener", reports[0].Key)
	require.Equal(t, 2, reports[0].Live)
	require.Equal(t, 2, reports[0].Peak)
	require.Equal(t, 3, reports[0].Streak)
	require.True(t, reports[0].Suspected)

	runtime.KeepAlive(held)
}

// TestSentinel_Audit_ResetOnRelease resets the streak once every object is reclaimed.
func TestSentinel_Audit_ResetOnRelease(t *testing.T) {
	s := newTestSentinel()

	observeTemporary(s, "temp")
	require.Equal(t, 1, s.Audit()[0].Streak)

	require.Eventually(t, func() bool {
		runtime.GC()
		return s.Stats()["temp"] == 0
	}, 5*time.Second, 10*time.Millisecond)

	report := s.Audit()[0]
	require.Zero(t, report.Live)
	require.Zero(t, report.Streak)
	require.False(t, report.Suspected)
}

// TestSentinel_Audit_Sorted returns reports ordered by key.
func TestSentinel_Audit_Sorted(t *testing.T) {
	s := newTestSentinel()

	a, b := &blob{}, &blob{}
	Observe(s, "zeta", a)
	Observe(s, "alpha", b)

	reports := s.Audit()
	require.Equal(t, "alpha", reports[0].Key)
	require.Equal(t, "zeta", reports[1].Key)

	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

// TestSentinel_Clear drops the record of a key.
func TestSentinel_Clear(t *testing.T) {
	s := newTestSentinel()

	b := &blob{}
	Observe(s, "cache", b)
	s.Clear("cache")

	require.Empty(t, s.Stats())
	runtime.KeepAlive(b)
}
