package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aihub/knowledge-go/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestKnowledgeBaseRepositoryGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeBaseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"knowledge_base_id", "name", "description", "create_time", "update_time"}).
		AddRow(7, "手册库", "产品手册", now, now)
	mock.ExpectQuery(`SELECT \* FROM "knowledge_base" WHERE knowledge_base_id = \$1`).
		WillReturnRows(rows)

	kb, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), kb.KnowledgeBaseID)
	assert.Equal(t, "手册库", kb.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKnowledgeBaseRepositoryGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeBaseRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "knowledge_base"`).
		WillReturnRows(sqlmock.NewRows([]string{"knowledge_base_id"}))

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestKnowledgeBaseRepositoryListWithSearch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeBaseRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "knowledge_base" WHERE name ILIKE \$1 OR description ILIKE \$2`).
		WithArgs("%manual%", "%manual%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "knowledge_base" WHERE name ILIKE \$1 OR description ILIKE \$2 ORDER BY create_time DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"knowledge_base_id", "name", "description", "create_time", "update_time"}).
			AddRow(1, "manuals", "", now, now))

	bases, total, err := repo.List(context.Background(), 1, 20, "manual")
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, bases, 1)
	assert.Equal(t, "manuals", bases[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKnowledgeBaseRepositoryUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeBaseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "knowledge_base" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), 7, map[string]interface{}{"description": "updated"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryGetByKnowledgeBaseID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "knowledge_document" WHERE knowledge_base_id = \$1`).
		WithArgs(uint(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "knowledge_document" WHERE knowledge_base_id = \$1 ORDER BY create_time DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "knowledge_base_id", "file_name", "status", "create_time", "update_time"}).
			AddRow(1, 7, "a.txt", models.DocumentStatusCompleted, now, now).
			AddRow(2, 7, "b.txt", models.DocumentStatusPending, now, now))

	docs, total, err := repo.GetByKnowledgeBaseID(context.Background(), 7, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].FileName)
	assert.Equal(t, models.DocumentStatusCompleted, docs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteByKnowledgeBaseID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "knowledge_document" WHERE knowledge_base_id = \$1`).
		WithArgs(uint(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := repo.DeleteByKnowledgeBaseID(context.Background(), 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
