package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kalambet/laiwatch/internal/crawl"
)

type fakeStarter struct {
	mu    sync.Mutex
	seeds []string
	err   error
}

func (f *fakeStarter) Start(seedURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeds = append(f.seeds, seedURL)
	if f.err != nil {
		return "", f.err
	}
	return "run-1", nil
}

func (f *fakeStarter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeds)
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(&fakeStarter{}, "not a schedule", "https://example.gov.br/", nil)
	assert.ErrorContains(t, err, "parsing schedule")

	_, err = New(&fakeStarter{}, "@daily", "", nil)
	assert.ErrorContains(t, err, "seed URL is required")
}

func TestNew_AcceptsCronAndDescriptors(t *testing.T) {
	for _, spec := range []string{"0 3 * * *", "@daily", "@every 6h"} {
		_, err := New(&fakeStarter{}, spec, "https://example.gov.br/", nil)
		assert.NoError(t, err, spec)
	}
}

func TestFire_StartsSeed(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	fs := &fakeStarter{}
	s, err := New(fs, "@daily", "https://example.gov.br/", zap.New(core))
	require.NoError(t, err)

	s.fire()
	assert.Equal(t, []string{"https://example.gov.br/"}, fs.seeds)
	assert.Equal(t, 1, logs.FilterMessage("scheduled crawl started").Len())
}

func TestFire_SkipsWhileRunning(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, err := New(&fakeStarter{err: crawl.ErrAlreadyRunning}, "@daily", "https://example.gov.br/", zap.New(core))
	require.NoError(t, err)

	s.fire()
	assert.Equal(t, 1, logs.FilterMessage("skipping scheduled crawl; a crawl is already running").Len())
	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestFire_LogsOtherErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, err := New(&fakeStarter{err: errors.New("taxonomy missing")}, "@daily", "https://example.gov.br/", zap.New(core))
	require.NoError(t, err)

	s.fire()
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestStartStop(t *testing.T) {
	fs := &fakeStarter{}
	s, err := New(fs, "@every 1s", "https://example.gov.br/", nil)
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()
	assert.False(t, s.Next().IsZero())
	require.Eventually(t, func() bool { return fs.calls() > 0 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
