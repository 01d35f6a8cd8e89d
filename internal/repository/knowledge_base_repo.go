package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/models"
)

// knowledgeBaseRepository 知识库仓库实现
type knowledgeBaseRepository struct {
	db *gorm.DB
}

// NewKnowledgeBaseRepository 创建知识库仓库
func NewKnowledgeBaseRepository(db *gorm.DB) KnowledgeBaseRepository {
	return &knowledgeBaseRepository{db: db}
}

// GetDB 获取数据库连接
func (r *knowledgeBaseRepository) GetDB() *gorm.DB {
	return r.db
}

// Create 创建知识库
func (r *knowledgeBaseRepository) Create(ctx context.Context, kb *models.KnowledgeBase) error {
	return r.db.WithContext(ctx).Create(kb).Error
}

// GetByID 根据ID获取知识库
func (r *knowledgeBaseRepository) GetByID(ctx context.Context, id uint) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := r.db.WithContext(ctx).Where("knowledge_base_id = ?", id).First(&kb).Error
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

// List 分页获取知识库列表
func (r *knowledgeBaseRepository) List(ctx context.Context, page, limit int, search string) ([]models.KnowledgeBase, int64, error) {
	var knowledgeBases []models.KnowledgeBase
	var total int64

	query := r.db.WithContext(ctx).Model(&models.KnowledgeBase{})
	if search != "" {
		query = query.Where("name ILIKE ? OR description ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("create_time DESC").Offset(offset).Limit(limit).Find(&knowledgeBases).Error; err != nil {
		return nil, 0, err
	}

	return knowledgeBases, total, nil
}

// Update 更新知识库
func (r *knowledgeBaseRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.KnowledgeBase{}).
		Where("knowledge_base_id = ?", id).
		Updates(updates).Error
}

// Delete 删除知识库
func (r *knowledgeBaseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Where("knowledge_base_id = ?", id).
		Delete(&models.KnowledgeBase{}).Error
}
