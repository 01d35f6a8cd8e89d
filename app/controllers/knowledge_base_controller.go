package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/services"
)

// KnowledgeBaseController 知识库管理接口
type KnowledgeBaseController struct {
	BaseController
	knowledgeService *services.KnowledgeService
}

func (c *KnowledgeBaseController) Prepare() {
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

// POST /api/knowledge
func (c *KnowledgeBaseController) Create() {
	var req services.CreateKnowledgeBaseRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求体格式错误")
		return
	}

	kb, err := c.knowledgeService.CreateKnowledgeBase(c.Ctx.Request.Context(), req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    kb,
	})
}

// GET /api/knowledge
func (c *KnowledgeBaseController) List() {
	page, limit := c.pagination()
	search := c.GetString("search")

	bases, total, err := c.knowledgeService.ListKnowledgeBases(c.Ctx.Request.Context(), page, limit, search)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"knowledge_bases": bases,
		"total":           total,
		"page":            page,
		"limit":           limit,
	})
}

// GET /api/knowledge/:id
func (c *KnowledgeBaseController) Get() {
	kbID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}

	kb, err := c.knowledgeService.GetKnowledgeBase(c.Ctx.Request.Context(), kbID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(kb)
}

// DELETE /api/knowledge/:id
func (c *KnowledgeBaseController) Delete() {
	kbID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}

	if err := c.knowledgeService.DeleteKnowledgeBase(c.Ctx.Request.Context(), kbID); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": kbID})
}

// GET /api/knowledge/:id/search
func (c *KnowledgeBaseController) Search() {
	kbID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}

	topK, _ := c.GetInt("top_k", 0)
	req := services.SearchRequest{
		Query: c.GetString("query"),
		Mode:  c.GetString("mode"),
		TopK:  topK,
	}

	matches, err := c.knowledgeService.Search(c.Ctx.Request.Context(), kbID, req)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"query":   req.Query,
		"results": matches,
		"total":   len(matches),
	})
}
