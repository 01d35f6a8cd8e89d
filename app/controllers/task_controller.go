package controllers

import (
	"net/http"

	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/services"
)

// TaskController 异步任务状态接口
type TaskController struct {
	BaseController
	knowledgeService *services.KnowledgeService
}

func (c *TaskController) Prepare() {
	if c.knowledgeService == nil {
		_ = di.Invoke(func(svc *services.KnowledgeService) {
			c.knowledgeService = svc
		})
	}
	if c.knowledgeService == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		c.StopRun()
	}
}

// GET /api/tasks
func (c *TaskController) List() {
	c.JSONSuccess(map[string]interface{}{
		"tasks": c.knowledgeService.ListTasks(),
	})
}

// GET /api/tasks/:task_id
func (c *TaskController) Get() {
	taskID := c.Ctx.Input.Param(":task_id")
	if taskID == "" {
		c.JSONError(http.StatusBadRequest, "缺少必要参数")
		return
	}

	task, err := c.knowledgeService.TaskStatus(taskID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(task)
}
