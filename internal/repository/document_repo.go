package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/models"
)

// documentRepository 文档仓库实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// GetDB 获取数据库连接
func (r *documentRepository) GetDB() *gorm.DB {
	return r.db
}

// Create 创建文档记录
func (r *documentRepository) Create(ctx context.Context, doc *models.KnowledgeDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetByID 根据ID获取文档
func (r *documentRepository) GetByID(ctx context.Context, docID uint) (*models.KnowledgeDocument, error) {
	var doc models.KnowledgeDocument
	err := r.db.WithContext(ctx).Where("document_id = ?", docID).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByKnowledgeBaseID 分页获取知识库下的文档
func (r *documentRepository) GetByKnowledgeBaseID(ctx context.Context, kbID uint, page, limit int) ([]models.KnowledgeDocument, int64, error) {
	var docs []models.KnowledgeDocument
	var total int64

	query := r.db.WithContext(ctx).Model(&models.KnowledgeDocument{}).
		Where("knowledge_base_id = ?", kbID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("create_time DESC").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Update 更新文档记录
func (r *documentRepository) Update(ctx context.Context, docID uint, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.KnowledgeDocument{}).
		Where("document_id = ?", docID).
		Updates(updates).Error
}

// Delete 删除文档记录
func (r *documentRepository) Delete(ctx context.Context, docID uint) error {
	return r.db.WithContext(ctx).Where("document_id = ?", docID).
		Delete(&models.KnowledgeDocument{}).Error
}

// DeleteByKnowledgeBaseID 删除知识库下全部文档记录
func (r *documentRepository) DeleteByKnowledgeBaseID(ctx context.Context, kbID uint) error {
	return r.db.WithContext(ctx).Where("knowledge_base_id = ?", kbID).
		Delete(&models.KnowledgeDocument{}).Error
}
