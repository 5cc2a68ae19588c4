package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull 任务队列已满
	ErrQueueFull = errors.New("job queue is full")
	// ErrPoolStopped Worker 池已停止
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// JobRunner 执行单个解析任务，通常为 service.JobService.Run
type JobRunner func(ctx context.Context, jobID string) error

// StatsFunc 接收池状态（size, active, queued）
type StatsFunc func(size, active, queueSize int)

// Pool Worker 池
type Pool struct {
	workers int
	jobChan chan *Job
	run     JobRunner
	stats   StatsFunc
	active  int32
	logger  *logrus.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Job 池内任务
type Job struct {
	ID       string
	APKPath  string
	resultCh chan error // 用于同步等待任务完成
}

// NewPool 创建 Worker 池
func NewPool(workers int, queueSize int, run JobRunner, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &Pool{
		workers: workers,
		jobChan: make(chan *Job, queueSize),
		run:     run,
		logger:  logger,
	}
}

// SetStatsHook 设置状态回调，每次任务开始或结束时调用
func (p *Pool) SetStatsHook(fn StatsFunc) {
	p.stats = fn
}

// Start 启动 Worker 池
func (p *Pool) Start(ctx context.Context) {
	p.logger.WithField("workers", p.workers).Info("Starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.reportStats()
}

// worker Worker 协程
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.WithField("worker_id", id).Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			p.logger.WithField("worker_id", id).Info("Worker shutting down")
			return

		case job, ok := <-p.jobChan:
			if !ok {
				p.logger.WithField("worker_id", id).Debug("Job channel closed, worker exiting")
				return
			}
			p.execute(ctx, id, job)
		}
	}
}

func (p *Pool) execute(ctx context.Context, workerID int, job *Job) {
	atomic.AddInt32(&p.active, 1)
	p.reportStats()

	p.logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"job_id":    job.ID,
		"apk_path":  job.APKPath,
	}).Info("Processing parse job")

	err := p.run(ctx, job.ID)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"worker_id": workerID,
			"job_id":    job.ID,
		}).Error("Parse job failed")
	} else {
		p.logger.WithFields(logrus.Fields{
			"worker_id": workerID,
			"job_id":    job.ID,
		}).Info("Parse job completed successfully")
	}

	atomic.AddInt32(&p.active, -1)
	p.reportStats()

	if job.resultCh != nil {
		job.resultCh <- err
		close(job.resultCh)
	}
}

func (p *Pool) reportStats() {
	if p.stats != nil {
		p.stats(p.workers, p.ActiveWorkers(), p.GetQueueSize())
	}
}

// Dispatch 把持久化的任务放入池中，实现 service.JobDispatcher
func (p *Pool) Dispatch(ctx context.Context, job *domain.ParseJob) error {
	return p.Submit(&Job{ID: job.ID, APKPath: job.APKPath})
}

// Submit 提交任务（异步，不等待结果）
func (p *Pool) Submit(job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolStopped
	}

	select {
	case p.jobChan <- job:
		p.logger.WithField("job_id", job.ID).Debug("Job submitted to pool")
		p.reportStats()
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitAndWait 提交任务并等待完成
func (p *Pool) SubmitAndWait(ctx context.Context, job *Job) error {
	job.resultCh = make(chan error, 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolStopped
	}
	select {
	case p.jobChan <- job:
		p.mu.RUnlock()
		p.logger.WithField("job_id", job.ID).Debug("Job submitted to pool (sync)")
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-job.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 停止 Worker 池，等待已入队任务执行完毕
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobChan)
	p.mu.Unlock()

	p.logger.Info("Stopping worker pool")
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// GetQueueSize 获取队列中任务数
func (p *Pool) GetQueueSize() int {
	return len(p.jobChan)
}

// ActiveWorkers 正在执行任务的 worker 数
func (p *Pool) ActiveWorkers() int {
	return int(atomic.LoadInt32(&p.active))
}
