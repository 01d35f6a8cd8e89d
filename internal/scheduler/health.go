package scheduler

import (
	"context"
	"sync"
	"time"
)

// TaskKindHealthCheck 周期健康检查任务类型
const TaskKindHealthCheck = "health_check"

// HealthCheck 单个依赖组件的探测函数
type HealthCheck func(ctx context.Context) error

// ComponentHealth 单个组件的最近一次探测结果
type ComponentHealth struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthMonitor 依赖组件健康监控。
// 探测作为周期任务跑在调度器的worker池上，
// 状态通过Status()拉取，不维护独立的后台线程
type HealthMonitor struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	results map[string]ComponentHealth
}

func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		checks:  make(map[string]HealthCheck),
		results: make(map[string]ComponentHealth),
	}
}

// Register 注册组件探测，须在Start之前完成
func (m *HealthMonitor) Register(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Start 把健康检查挂为调度器上的周期任务并立即执行一次
func (m *HealthMonitor) Start(s *Scheduler, interval time.Duration) {
	s.RegisterHandler(TaskKindHealthCheck, func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		m.RunChecks(ctx)
		return nil, nil
	})
	m.RunChecks(context.Background())
	s.Every(interval, TaskKindHealthCheck, nil)
}

// RunChecks 执行全部已注册的探测并记录结果
func (m *HealthMonitor) RunChecks(ctx context.Context) {
	m.mu.RLock()
	checks := make(map[string]HealthCheck, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	for name, check := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(probeCtx)
		cancel()

		result := ComponentHealth{
			Healthy:   err == nil,
			CheckedAt: time.Now(),
		}
		if err != nil {
			result.Error = err.Error()
		}

		m.mu.Lock()
		m.results[name] = result
		m.mu.Unlock()
	}
}

// Status 返回各组件的最近探测结果与整体健康位
func (m *HealthMonitor) Status() (map[string]ComponentHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	healthy := true
	snapshot := make(map[string]ComponentHealth, len(m.results))
	for name, result := range m.results {
		snapshot[name] = result
		if !result.Healthy {
			healthy = false
		}
	}
	return snapshot, healthy
}
