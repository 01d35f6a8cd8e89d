package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/logger"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address  string
	Username string
	Password string
	Database string
	UseTLS   bool
	Timeout  time.Duration
}

type milvusVectorStore struct {
	milvusClient client.Client
}

// NewMilvusVectorStore 创建Milvus向量存储
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, errors.NewVectorStoreUnavailable("failed to connect to milvus").WithCause(err)
	}

	return &milvusVectorStore{milvusClient: milvusClient}, nil
}

func (s *milvusVectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return errors.NewVectorStoreUnavailable("failed to check collection").WithCause(err)
	}

	if hasCollection {
		desc, err := s.milvusClient.DescribeCollection(ctx, name)
		if err != nil {
			return errors.NewVectorStoreError("failed to describe collection").WithCause(err)
		}
		existing, err := collectionDimension(desc.Schema)
		if err != nil {
			return err
		}
		if existing != dim {
			return errors.NewDimensionConflict(name, existing, dim)
		}
		return nil
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    "knowledge base chunk vectors",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "metadata",
				DataType: entity.FieldTypeJSON,
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dim),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return errors.NewVectorStoreError("failed to create collection").WithCause(err)
	}

	index, err := entity.NewIndexIvfFlat(entity.L2, 8)
	if err != nil {
		return errors.NewVectorStoreError("failed to build index params").WithCause(err)
	}
	if err := s.milvusClient.CreateIndex(ctx, name, "embedding", index, false); err != nil {
		return errors.NewVectorStoreError("failed to create index").WithCause(err)
	}
	if err := s.milvusClient.LoadCollection(ctx, name, false); err != nil {
		return errors.NewVectorStoreError("failed to load collection").WithCause(err)
	}
	return nil
}

func (s *milvusVectorStore) Upsert(ctx context.Context, collection string, entries []IndexEntry) ([]int64, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	documentIDs := make([]string, len(entries))
	contents := make([]string, len(entries))
	metadatas := make([][]byte, len(entries))
	embeddings := make([][]float32, len(entries))
	dim := len(entries[0].Embedding)

	for i, entry := range entries {
		documentIDs[i] = entry.DocumentID
		contents[i] = entry.Content
		embeddings[i] = entry.Embedding
		meta := entry.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, errors.NewVectorStoreError("failed to encode metadata").WithCause(err)
		}
		metadatas[i] = raw
	}

	idColumn, err := s.milvusClient.Insert(ctx, collection, "",
		entity.NewColumnVarChar("document_id", documentIDs),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnJSONBytes("metadata", metadatas),
		entity.NewColumnFloatVector("embedding", dim, embeddings),
	)
	if err != nil {
		return nil, errors.NewVectorStoreError("milvus insert failed").WithCause(err)
	}

	ids, ok := idColumn.(*entity.ColumnInt64)
	if !ok {
		return nil, errors.NewVectorStoreError("milvus insert returned unexpected id column type")
	}
	if len(ids.Data()) != len(entries) {
		return nil, errors.NewVectorStoreError(fmt.Sprintf("milvus assigned %d ids for %d entries", len(ids.Data()), len(entries)))
	}

	if err := s.milvusClient.Flush(ctx, collection, false); err != nil {
		logger.Warn("milvus flush after insert failed", zap.String("collection", collection), zap.Error(err))
	}

	assigned := make([]int64, len(entries))
	copy(assigned, ids.Data())
	return assigned, nil
}

func (s *milvusVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	if req.TopK <= 0 {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("topK must be positive, got %d", req.TopK))
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, req.Collection)
	if err != nil {
		return nil, errors.NewVectorStoreUnavailable("failed to check collection").WithCause(err)
	}
	if !hasCollection {
		return nil, nil
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(8)
	if err != nil {
		return nil, errors.NewVectorStoreError("failed to build search params").WithCause(err)
	}

	searchResults, err := s.milvusClient.Search(
		ctx,
		req.Collection,
		nil,
		buildMilvusFilter(req.Filter),
		[]string{"document_id", "content", "metadata"},
		[]entity.Vector{entity.FloatVector(req.QueryEmbedding)},
		"embedding",
		entity.L2,
		req.TopK,
		sp,
	)
	if err != nil {
		return nil, errors.NewVectorStoreError("milvus search failed").WithCause(err)
	}
	if len(searchResults) == 0 {
		return nil, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, errors.NewVectorStoreError("milvus search failed").WithCause(result.Err)
	}

	ids := columnInt64Data(result.IDs)
	var documentIDs, contents []string
	var metadatas [][]byte
	for _, field := range result.Fields {
		switch field.Name() {
		case "document_id":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				documentIDs = col.Data()
			}
		case "content":
			if col, ok := field.(*entity.ColumnVarChar); ok {
				contents = col.Data()
			}
		case "metadata":
			if col, ok := field.(*entity.ColumnJSONBytes); ok {
				metadatas = col.Data()
			}
		}
	}

	matches := make([]SearchMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := SearchMatch{}
		if i < len(ids) {
			match.EntryID = ids[i]
		}
		if i < len(documentIDs) {
			match.DocumentID = documentIDs[i]
		}
		if i < len(contents) {
			match.Content = contents[i]
		}
		if i < len(metadatas) {
			var meta map[string]string
			if err := json.Unmarshal(metadatas[i], &meta); err == nil {
				match.Metadata = meta
			}
		}
		if i < len(result.Scores) {
			// L2距离转相似度，距离越近得分越高
			match.Score = 1.0 / (1.0 + float64(result.Scores[i]))
		}
		matches = append(matches, match)
	}

	// Milvus按距离升序返回，这里补充同距离时按id升序的确定性排序
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].EntryID < matches[j].EntryID
		}
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

func (s *milvusVectorStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]string) (int64, error) {
	if len(filter) == 0 {
		return 0, errors.NewInvalidArgument("delete filter cannot be empty")
	}

	hasCollection, err := s.milvusClient.HasCollection(ctx, collection)
	if err != nil {
		return 0, errors.NewVectorStoreUnavailable("failed to check collection").WithCause(err)
	}
	if !hasCollection {
		return 0, nil
	}

	expr := buildMilvusFilter(filter)

	// Milvus的Delete不返回删除数量，先查询命中数再删除
	queryResult, err := s.milvusClient.Query(ctx, collection, nil, expr, []string{"id"})
	if err != nil {
		return 0, errors.NewVectorStoreError("milvus query before delete failed").WithCause(err)
	}
	var count int64
	for _, col := range queryResult {
		if col.Name() == "id" {
			count = int64(col.Len())
		}
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.milvusClient.Delete(ctx, collection, "", expr); err != nil {
		return 0, errors.NewVectorStoreError("milvus delete failed").WithCause(err)
	}
	if err := s.milvusClient.Flush(ctx, collection, false); err != nil {
		logger.Warn("milvus flush after delete failed", zap.String("collection", collection), zap.Error(err))
	}
	return count, nil
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

// buildMilvusFilter 将等值条件合取转换为Milvus布尔表达式
func buildMilvusFilter(filter map[string]string) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conditions := make([]string, 0, len(keys))
	for _, key := range keys {
		value := strings.ReplaceAll(filter[key], `"`, `\"`)
		if key == "document_id" {
			conditions = append(conditions, fmt.Sprintf(`document_id == "%s"`, value))
			continue
		}
		conditions = append(conditions, fmt.Sprintf(`metadata["%s"] == "%s"`, key, value))
	}
	return strings.Join(conditions, " && ")
}

func collectionDimension(schema *entity.Schema) (int, error) {
	if schema == nil {
		return 0, errors.NewVectorStoreError("collection schema is missing")
	}
	for _, field := range schema.Fields {
		if field.DataType != entity.FieldTypeFloatVector {
			continue
		}
		var dim int
		if _, err := fmt.Sscanf(field.TypeParams["dim"], "%d", &dim); err != nil {
			return 0, errors.NewVectorStoreError("collection vector field has no parseable dimension").WithCause(err)
		}
		return dim, nil
	}
	return 0, errors.NewVectorStoreError("collection has no vector field")
}

func columnInt64Data(col entity.Column) []int64 {
	if c, ok := col.(*entity.ColumnInt64); ok {
		return c.Data()
	}
	return nil
}
