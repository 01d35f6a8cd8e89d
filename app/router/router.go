package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/aihub/knowledge-go/app/controllers"
	"github.com/aihub/knowledge-go/internal/config"
)

// Init 注册全部路由，需在配置加载后调用
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	if cfg := config.GetConfig(); cfg != nil && cfg.Metrics.Enabled {
		web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")
	}

	// 知识库路由
	kbController := &controllers.KnowledgeBaseController{}
	web.Router("/api/knowledge", kbController, "get:List;post:Create")
	web.Router("/api/knowledge/:id", kbController, "get:Get;delete:Delete")
	web.Router("/api/knowledge/:id/search", kbController, "get:Search")

	// 文档路由
	docController := &controllers.DocumentController{}
	web.Router("/api/knowledge/:id/documents", docController, "get:List;post:Upload")
	web.Router("/api/knowledge/:id/documents/:doc_id", docController, "get:Get;delete:Delete")

	// 任务路由
	taskController := &controllers.TaskController{}
	web.Router("/api/tasks", taskController, "get:List")
	web.Router("/api/tasks/:task_id", taskController, "get:Get")
}
