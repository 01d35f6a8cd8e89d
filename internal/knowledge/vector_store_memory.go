package knowledge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aihub/knowledge-go/internal/errors"
)

// MemoryVectorStore 进程内向量存储，作为默认provider与参考实现。
// 所有操作在读写锁下进行，检索为全量线性扫描
type MemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dim     int
	nextID  int64
	entries []IndexEntry
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		collections: make(map[string]*memoryCollection),
	}
}

func (s *MemoryVectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return errors.NewInvalidArgument(fmt.Sprintf("collection dimension must be positive, got %d", dim))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		if col.dim != dim {
			return errors.NewDimensionConflict(name, col.dim, dim)
		}
		return nil
	}
	s.collections[name] = &memoryCollection{dim: dim, nextID: 1}
	return nil
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, collection string, entries []IndexEntry) ([]int64, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, errors.NewVectorStoreError(fmt.Sprintf("collection %q does not exist", collection))
	}

	// 先整批校验再写入，保证失败时不留下部分可见状态
	for i, entry := range entries {
		if len(entry.Embedding) != col.dim {
			return nil, errors.NewDimensionConflict(collection, col.dim, len(entries[i].Embedding))
		}
	}

	ids := make([]int64, len(entries))
	for i, entry := range entries {
		entry.ID = col.nextID
		col.nextID++
		entry.Embedding = append([]float32(nil), entry.Embedding...)
		entry.Metadata = copyMetadata(entry.Metadata)
		col.entries = append(col.entries, entry)
		ids[i] = entry.ID
	}
	return ids, nil
}

func (s *MemoryVectorStore) Search(ctx context.Context, req VectorSearchRequest) ([]SearchMatch, error) {
	if req.TopK <= 0 {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("topK must be positive, got %d", req.TopK))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[req.Collection]
	if !ok {
		return nil, nil
	}
	if len(req.QueryEmbedding) != col.dim {
		return nil, errors.NewDimensionConflict(req.Collection, col.dim, len(req.QueryEmbedding))
	}

	type scored struct {
		entry IndexEntry
		dist  float64
	}
	var candidates []scored
	for _, entry := range col.entries {
		if !matchesFilter(entry, req.Filter) {
			continue
		}
		candidates = append(candidates, scored{entry: entry, dist: squaredL2(req.QueryEmbedding, entry.Embedding)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist == candidates[j].dist {
			return candidates[i].entry.ID < candidates[j].entry.ID
		}
		return candidates[i].dist < candidates[j].dist
	})
	if len(candidates) > req.TopK {
		candidates = candidates[:req.TopK]
	}

	matches := make([]SearchMatch, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, SearchMatch{
			EntryID:    c.entry.ID,
			DocumentID: c.entry.DocumentID,
			Content:    c.entry.Content,
			Score:      1.0 / (1.0 + c.dist),
			Metadata:   copyMetadata(c.entry.Metadata),
		})
	}
	return matches, nil
}

func (s *MemoryVectorStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]string) (int64, error) {
	if len(filter) == 0 {
		return 0, errors.NewInvalidArgument("delete filter cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}

	kept := col.entries[:0]
	var deleted int64
	for _, entry := range col.entries {
		if matchesFilter(entry, filter) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	col.entries = kept
	return deleted, nil
}

func (s *MemoryVectorStore) Ready() bool {
	return true
}

// matchesFilter 等值条件合取；document_id键匹配文档ID字段
func matchesFilter(entry IndexEntry, filter map[string]string) bool {
	for key, want := range filter {
		if key == "document_id" {
			if entry.DocumentID != want {
				return false
			}
			continue
		}
		if entry.Metadata[key] != want {
			return false
		}
	}
	return true
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
