package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/logger"
)

// TaskStatus 任务状态，线性状态机：pending → running → {completed, failed}
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task 异步任务记录。终态不再变化；Error只在failed时非空
type Task struct {
	ID          string
	Kind        string
	Params      map[string]interface{}
	Status      TaskStatus
	Result      interface{}
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Handler 任务执行函数，返回值记录在Task.Result中
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

// Scheduler 有界队列加固定worker池的任务调度器。
// 任务记录只由执行它的worker写入，其他调用方只读；
// 运行中的任务不支持取消，Shutdown等待在途任务自然结束
type Scheduler struct {
	mu       sync.RWMutex
	tasks    map[string]*Task
	handlers map[string]Handler
	queue    chan string
	wg       sync.WaitGroup
	done     chan struct{}
	closed   bool
}

// New 创建调度器并启动worker池
func New(workers, queueSize int) *Scheduler {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	s := &Scheduler{
		tasks:    make(map[string]*Task),
		handlers: make(map[string]Handler),
		queue:    make(chan string, queueSize),
		done:     make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// RegisterHandler 注册任务类型的执行函数，必须在Submit之前完成
func (s *Scheduler) RegisterHandler(kind string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = handler
}

// Submit 提交任务并立即返回任务id。
// 不阻塞：队列已满或调度器已关闭时直接报错，由调用方决定是否重试
func (s *Scheduler) Submit(kind string, params map[string]interface{}) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New(errors.ErrCodeInternalServer, "scheduler is shut down")
	}
	if _, ok := s.handlers[kind]; !ok {
		s.mu.Unlock()
		return "", errors.NewInvalidArgument(fmt.Sprintf("unknown task kind %q", kind))
	}

	task := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Params:    params,
		Status:    TaskStatusPending,
		CreatedAt: time.Now(),
	}
	s.tasks[task.ID] = task

	// 入队在锁内进行，避免与Shutdown关闭队列竞争
	select {
	case s.queue <- task.ID:
		s.mu.Unlock()
		return task.ID, nil
	default:
		delete(s.tasks, task.ID)
		s.mu.Unlock()
		return "", errors.New(errors.ErrCodeInternalServer, "task queue is full")
	}
}

// Status 返回任务的时点快照
func (s *Scheduler) Status(taskID string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, errors.NewNotFoundError("task")
	}
	return *task, nil
}

// List 返回全部任务快照，按创建时间降序
func (s *Scheduler) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, *task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks
}

// Every 以固定间隔重复提交同类任务，直到调度器关闭。
// 周期任务与普通任务共用同一worker池
func (s *Scheduler) Every(interval time.Duration, kind string, params map[string]interface{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				if _, err := s.Submit(kind, params); err != nil {
					logger.Warn("periodic task submission failed",
						zap.String("kind", kind), zap.Error(err))
				}
			}
		}
	}()
}

// Shutdown 停止接收新任务，等待已入队任务执行完毕后返回
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	close(s.queue)
	s.wg.Wait()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for taskID := range s.queue {
		s.run(taskID)
	}
}

func (s *Scheduler) run(taskID string) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return
	}
	handler := s.handlers[task.Kind]
	now := time.Now()
	task.Status = TaskStatusRunning
	task.StartedAt = &now
	s.mu.Unlock()

	result, err := s.execute(handler, task.Params)

	s.mu.Lock()
	defer s.mu.Unlock()
	done := time.Now()
	task.CompletedAt = &done
	if err != nil {
		task.Status = TaskStatusFailed
		task.Error = err.Error()
		logger.Error("task failed",
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Error(err))
		return
	}
	task.Status = TaskStatusCompleted
	task.Result = result
}

// execute 运行handler，panic转换为失败而不是打穿worker
func (s *Scheduler) execute(handler Handler, params map[string]interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task handler panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return handler(context.Background(), params)
}
