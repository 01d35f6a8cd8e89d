package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// KnowledgeBase 知识库表
type KnowledgeBase struct {
	KnowledgeBaseID uint      `gorm:"primaryKey;column:knowledge_base_id" json:"knowledge_base_id"`
	Name            string    `gorm:"size:200;not null" json:"name"`
	Description     string    `gorm:"size:2000" json:"description"`
	EmbeddingConfig string    `gorm:"type:text;column:embedding_config" json:"embedding_config"` // JSON存储向量化配置
	RetrievalConfig string    `gorm:"type:text;column:retrieval_config" json:"retrieval_config"` // JSON存储检索配置
	CreateTime      time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime      time.Time `gorm:"column:update_time" json:"update_time"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_base"
}

// CollectionName 知识库在向量/全文索引中的集合名
func (kb *KnowledgeBase) CollectionName() string {
	return fmt.Sprintf("kb_chunks_%d", kb.KnowledgeBaseID)
}

// EmbeddingSettings 知识库级向量化配置
type EmbeddingSettings struct {
	Type       string `json:"type"`
	ModelName  string `json:"model_name,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// RetrievalSettings 知识库级检索配置
type RetrievalSettings struct {
	Type         string  `json:"type"`
	VectorWeight float64 `json:"vector_weight"`
	BM25Weight   float64 `json:"bm25_weight"`
	TopK         int     `json:"top_k"`
}

// ParseEmbeddingSettings 解析向量化配置，空串返回零值
func (kb *KnowledgeBase) ParseEmbeddingSettings() (EmbeddingSettings, error) {
	var settings EmbeddingSettings
	if kb.EmbeddingConfig == "" {
		return settings, nil
	}
	err := json.Unmarshal([]byte(kb.EmbeddingConfig), &settings)
	return settings, err
}

// ParseRetrievalSettings 解析检索配置，空串返回零值
func (kb *KnowledgeBase) ParseRetrievalSettings() (RetrievalSettings, error) {
	var settings RetrievalSettings
	if kb.RetrievalConfig == "" {
		return settings, nil
	}
	err := json.Unmarshal([]byte(kb.RetrievalConfig), &settings)
	return settings, err
}

// 文档处理状态
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// KnowledgeDocument 知识库文档表
type KnowledgeDocument struct {
	DocumentID      uint      `gorm:"primaryKey;column:document_id" json:"document_id"`
	KnowledgeBaseID uint      `gorm:"column:knowledge_base_id;not null;index" json:"knowledge_base_id"`
	FileName        string    `gorm:"column:file_name;size:500;not null" json:"file_name"`
	FileHash        string    `gorm:"column:file_hash;size:64;index" json:"file_hash"`
	FileSize        int64     `gorm:"column:file_size" json:"file_size"`
	ObjectKey       string    `gorm:"column:object_key;size:600" json:"object_key"` // 对象存储中的路径
	Status          string    `gorm:"size:20;not null;default:pending" json:"status"`
	ChunkCount      int       `gorm:"column:chunk_count;default:0" json:"chunk_count"`
	TaskID          string    `gorm:"column:task_id;size:64" json:"task_id"`
	ErrorMessage    string    `gorm:"column:error_message;size:2000" json:"error_message,omitempty"`
	CreateTime      time.Time `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime      time.Time `gorm:"column:update_time" json:"update_time"`
}

func (KnowledgeDocument) TableName() string {
	return "knowledge_document"
}

// DocumentKey 文档在索引元数据中使用的标识
func (d *KnowledgeDocument) DocumentKey() string {
	return fmt.Sprintf("%d", d.DocumentID)
}
