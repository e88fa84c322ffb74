package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adhocore/gronx"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
)

// SourcesFor 根据配置构造扫描目录
func SourcesFor(cfg *config.Config, includeActive bool) []Source {
	dirs := cfg.SourceDirs()
	sources := make([]Source, 0, len(dirs)+1)
	for _, d := range dirs {
		sources = append(sources, Source{Path: d})
	}
	if includeActive && cfg.ActiveDir() != "" {
		sources = append(sources, Source{Path: cfg.ActiveDir(), Active: true})
	}
	return sources
}

// scheduledJob 调度中的任务
type scheduledJob struct {
	job     config.ScheduleJob
	running atomic.Bool
}

// Scheduler 按 cron 表达式定时执行索引
// 同一任务不会重叠执行，不同任务之间可以重叠
type Scheduler struct {
	indexer *Indexer
	cfg     *config.Config
	jobs    []*scheduledJob

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	logger  *slog.Logger
}

// NewScheduler 创建调度器
func NewScheduler(indexer *Indexer, cfg *config.Config) *Scheduler {
	jobs := make([]*scheduledJob, 0, len(cfg.Schedule.Jobs))
	for _, j := range cfg.Schedule.Jobs {
		jobs = append(jobs, &scheduledJob{job: j})
	}
	return &Scheduler{
		indexer: indexer,
		cfg:     cfg,
		jobs:    jobs,
		logger:  log.NewModuleLogger("indexer", "scheduler"),
	}
}

// Validate 检查全部 cron 表达式
func (s *Scheduler) Validate() error {
	gx := gronx.New()
	for _, sj := range s.jobs {
		if !gx.IsValid(sj.job.Cron) {
			return fmt.Errorf("invalid cron expression for job %s: %s", sj.job.Name, sj.job.Cron)
		}
	}
	return nil
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	if !s.cfg.Schedule.Enabled || len(s.jobs) == 0 {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true

	for _, sj := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, sj)
	}
	s.logger.Info("Index scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop 停止调度器，等待执行中的任务退出
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Index scheduler stopped")
	return nil
}

// loop 等待下一次触发时间
func (s *Scheduler) loop(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()
	for {
		next, err := gronx.NextTickAfter(sj.job.Cron, time.Now(), false)
		if err != nil {
			s.logger.Error("Failed to compute next run", "job", sj.job.Name, "cron", sj.job.Cron, "error", err)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.runJob(ctx, sj)
			}()
		}
	}
}

// RunJob 立即执行指定任务
func (s *Scheduler) RunJob(ctx context.Context, name string) (*PassResult, error) {
	for _, sj := range s.jobs {
		if sj.job.Name == name {
			return s.runJob(ctx, sj)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

var (
	// ErrJobRunning 同一任务上一次执行尚未结束
	ErrJobRunning = errors.New("schedule job already running")
	// ErrUnknownJob 配置中没有该任务
	ErrUnknownJob = errors.New("unknown schedule job")
)

func (s *Scheduler) runJob(ctx context.Context, sj *scheduledJob) (*PassResult, error) {
	if !sj.running.CompareAndSwap(false, true) {
		s.logger.Warn("Previous run still in progress, skipping", "job", sj.job.Name)
		return nil, ErrJobRunning
	}
	defer sj.running.Store(false)

	opts := PassOptions{
		Sources:     SourcesFor(s.cfg, sj.job.IncludeActive),
		Incremental: sj.job.Incremental,
		Embeddings:  sj.job.Embeddings,
	}
	s.logger.Info("Running scheduled index job", "job", sj.job.Name)
	return s.indexer.Pass(ctx, opts)
}
