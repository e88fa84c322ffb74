package indexer

import (
	"context"
	"testing"

	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedulerConfig(archive, active string, jobs ...config.ScheduleJob) *config.Config {
	cfg := config.NewConfig()
	cfg.Sources.ArchiveDir = archive
	cfg.Sources.ActiveDir = active
	cfg.Sources.Extra = nil
	cfg.Schedule.Enabled = true
	cfg.Schedule.Jobs = jobs
	return cfg
}

func TestSourcesFor(t *testing.T) {
	cfg := schedulerConfig("/data/archive", "/data/active")

	sources := SourcesFor(cfg, false)
	require.Len(t, sources, 1)
	assert.Equal(t, Source{Path: "/data/archive"}, sources[0])

	sources = SourcesFor(cfg, true)
	require.Len(t, sources, 2)
	assert.True(t, sources[1].Active)
	assert.Equal(t, "/data/active", sources[1].Path)
}

func TestScheduler_Validate(t *testing.T) {
	ok := NewScheduler(nil, schedulerConfig("/a", "/b", config.ScheduleJob{Name: "light", Cron: "*/15 * * * *"}))
	assert.NoError(t, ok.Validate())

	bad := NewScheduler(nil, schedulerConfig("/a", "/b", config.ScheduleJob{Name: "broken", Cron: "every minute"}))
	assert.Error(t, bad.Validate())
	assert.Error(t, bad.Start())
}

func TestScheduler_RunJob(t *testing.T) {
	f := newFixture(t, false)
	f.write(t, "main-a.jsonl", msg("user", "scheduled pass content"))

	cfg := schedulerConfig(f.dir, "", config.ScheduleJob{Name: "light", Cron: "*/15 * * * *", Incremental: true})
	s := NewScheduler(f.indexer, cfg)

	res, err := s.RunJob(context.Background(), "light")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)

	res, err = s.RunJob(context.Background(), "light")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)

	_, err = s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestScheduler_SameJobDoesNotOverlap(t *testing.T) {
	cfg := schedulerConfig("/a", "", config.ScheduleJob{Name: "light", Cron: "* * * * *"})
	s := NewScheduler(nil, cfg)
	s.jobs[0].running.Store(true)

	_, err := s.RunJob(context.Background(), "light")
	assert.ErrorIs(t, err, ErrJobRunning)
}

func TestScheduler_StartStop(t *testing.T) {
	cfg := schedulerConfig("/a", "", config.ScheduleJob{Name: "light", Cron: "0 0 1 1 *"})
	s := NewScheduler(nil, cfg)
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}
