package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/models"
)

// Repository 基础仓库接口
type Repository interface {
	GetDB() *gorm.DB
}

// KnowledgeBaseRepository 知识库仓库接口
type KnowledgeBaseRepository interface {
	Repository
	Create(ctx context.Context, kb *models.KnowledgeBase) error
	GetByID(ctx context.Context, id uint) (*models.KnowledgeBase, error)
	List(ctx context.Context, page, limit int, search string) ([]models.KnowledgeBase, int64, error)
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
}

// DocumentRepository 文档仓库接口
type DocumentRepository interface {
	Repository
	Create(ctx context.Context, doc *models.KnowledgeDocument) error
	GetByID(ctx context.Context, docID uint) (*models.KnowledgeDocument, error)
	GetByKnowledgeBaseID(ctx context.Context, kbID uint, page, limit int) ([]models.KnowledgeDocument, int64, error)
	Update(ctx context.Context, docID uint, updates map[string]interface{}) error
	Delete(ctx context.Context, docID uint) error
	DeleteByKnowledgeBaseID(ctx context.Context, kbID uint) error
}
