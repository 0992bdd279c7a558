package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/fundgate/internal/config"
	"github.com/huangang/fundgate/pkg/logger"
)

const (
	TaskTypeEvaluate = "project:evaluate"

	evaluationQueue = "evaluation"
)

// Triggers recorded on evaluation tasks
const (
	TriggerVoteCast    = "vote_cast"
	TriggerVoteRemoved = "vote_removed"
	TriggerDeadline    = "deadline"
)

var ErrQueueClosed = errors.New("task queue closed")

// EvaluationTask asks the status evaluator to look at one project
type EvaluationTask struct {
	ProjectID  uint      `json:"project_id"`
	Trigger    string    `json:"trigger"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TaskProcessor handles one evaluation task. A returned error asks the queue to retry.
type TaskProcessor func(context.Context, *EvaluationTask) error

// TaskQueue defines the interface for evaluation dispatch
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *EvaluationTask) error
	// IsAsync returns true if tasks are handed to an external broker
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// Global task queue instance
var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue initializes the global task queue based on config
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warnf("[TaskQueue] Redis unavailable, falling back to local workers: %v", err)
				globalTaskQueue = NewLocalQueue(cfg.Voting.LocalWorkers)
			} else {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
			}
		} else {
			logger.Infof("[TaskQueue] Local queue initialized with %d workers (Redis disabled)", cfg.Voting.LocalWorkers)
			globalTaskQueue = NewLocalQueue(cfg.Voting.LocalWorkers)
		}
	})
	return globalTaskQueue
}

// GetTaskQueue returns the global task queue instance
func GetTaskQueue() TaskQueue {
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// newEvaluationTask builds the asynq task for an evaluation request
func newEvaluationTask(task *EvaluationTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeEvaluate, payload,
		asynq.Queue(evaluationQueue),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueue adds an evaluation task to the async queue
func (q *AsyncQueue) Enqueue(task *EvaluationTask) error {
	t, err := newEvaluationTask(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(t)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Uint("project_id", task.ProjectID).
		Str("trigger", task.Trigger).Msg("evaluation enqueued")
	return nil
}

// IsAsync returns true for async queue
func (q *AsyncQueue) IsAsync() bool {
	return true
}

// Close closes the async queue client
func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// LocalQueue runs evaluation tasks on an in-process worker pool.
// Failed tasks are retried with linear backoff; Close drains pending work.
type LocalQueue struct {
	tasks chan *EvaluationTask

	cfgMu       sync.RWMutex
	processor   TaskProcessor
	maxAttempts int
	backoff     time.Duration

	// mu guards closed and the send on tasks
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewLocalQueue starts workers goroutines. Tasks enqueued before SetProcessor are rejected.
func NewLocalQueue(workers int) *LocalQueue {
	if workers <= 0 {
		workers = 1
	}
	q := &LocalQueue{
		tasks:       make(chan *EvaluationTask, 1024),
		maxAttempts: 3,
		backoff:     200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	return q
}

// SetProcessor sets the function that handles tasks
func (q *LocalQueue) SetProcessor(processor TaskProcessor) {
	q.cfgMu.Lock()
	defer q.cfgMu.Unlock()
	q.processor = processor
}

// SetRetry overrides the retry budget
func (q *LocalQueue) SetRetry(maxAttempts int, backoff time.Duration) {
	q.cfgMu.Lock()
	defer q.cfgMu.Unlock()
	if maxAttempts > 0 {
		q.maxAttempts = maxAttempts
	}
	q.backoff = backoff
}

// Enqueue hands the task to a worker. It blocks while the buffer is full.
func (q *LocalQueue) Enqueue(task *EvaluationTask) error {
	q.cfgMu.RLock()
	ready := q.processor != nil
	q.cfgMu.RUnlock()
	if !ready {
		return errors.New("local queue has no processor")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.tasks <- task
	return nil
}

func (q *LocalQueue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.process(task)
	}
}

func (q *LocalQueue) process(task *EvaluationTask) {
	q.cfgMu.RLock()
	processor, maxAttempts, backoff := q.processor, q.maxAttempts, q.backoff
	q.cfgMu.RUnlock()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = processor(context.Background(), task); err == nil {
			return
		}
		if attempt < maxAttempts {
			time.Sleep(backoff * time.Duration(attempt))
		}
	}
	logger.Error().Err(err).Uint("project_id", task.ProjectID).Str("trigger", task.Trigger).
		Int("attempts", maxAttempts).Msg("evaluation task failed")
}

// IsAsync returns false for the in-process queue
func (q *LocalQueue) IsAsync() bool {
	return false
}

// Close stops accepting tasks and waits for queued ones to finish
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
