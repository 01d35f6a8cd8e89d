package controllers

import (
	"io"
	"net/http"

	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/services"
)

// 单个上传文档的大小上限
const maxUploadBytes = 32 << 20

// DocumentController 文档管理接口
type DocumentController struct {
	BaseController
	knowledgeService *services.KnowledgeService
}

func (c *DocumentController) Prepare() {
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

// POST /api/knowledge/:id/documents
// multipart字段file承载原文，入库在任务池异步执行
func (c *DocumentController) Upload() {
	kbID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "缺少上传文件")
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		c.JSONError(http.StatusRequestEntityTooLarge, "文件过大")
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSONError(http.StatusBadRequest, "读取上传文件失败")
		return
	}
	if int64(len(content)) > maxUploadBytes {
		c.JSONError(http.StatusRequestEntityTooLarge, "文件过大")
		return
	}

	doc, err := c.knowledgeService.UploadDocument(c.Ctx.Request.Context(), kbID, header.Filename, content)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(http.StatusAccepted, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"document": doc,
			"task_id":  doc.TaskID,
		},
	})
}

// GET /api/knowledge/:id/documents
func (c *DocumentController) List() {
	kbID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}
	page, limit := c.pagination()

	docs, total, err := c.knowledgeService.ListDocuments(c.Ctx.Request.Context(), kbID, page, limit)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"documents": docs,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}

// GET /api/knowledge/:id/documents/:doc_id
func (c *DocumentController) Get() {
	kbID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}
	docID, ok := c.mustParseUintParam(":doc_id")
	if !ok {
		return
	}

	doc, err := c.knowledgeService.GetDocument(c.Ctx.Request.Context(), kbID, docID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(doc)
}

// DELETE /api/knowledge/:id/documents/:doc_id
func (c *DocumentController) Delete() {
	kbID, ok := c.mustParseUintParam(":id")
	if !ok {
		return
	}
	docID, ok := c.mustParseUintParam(":doc_id")
	if !ok {
		return
	}

	if err := c.knowledgeService.DeleteDocument(c.Ctx.Request.Context(), kbID, docID); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": docID})
}
