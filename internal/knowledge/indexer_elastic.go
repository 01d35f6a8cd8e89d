package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/aihub/knowledge-go/internal/errors"
)

// ElasticsearchIndexer 基于ES的全文索引实现，打分使用ES内建的BM25
type ElasticsearchIndexer struct {
	client      *elasticsearch.Client
	indexPrefix string
	indexCache  map[string]bool
	mu          sync.Mutex
}

// NewElasticsearchIndexer 创建ES索引器
func NewElasticsearchIndexer(addresses []string, username, password, apiKey, indexPrefix string) (*ElasticsearchIndexer, error) {
	if len(addresses) == 0 {
		return nil, errors.NewInvalidConfig("elasticsearch indexer requires at least one address")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
		APIKey:    apiKey,
	})
	if err != nil {
		return nil, errors.NewVectorStoreUnavailable("failed to create elasticsearch client").WithCause(err)
	}

	if indexPrefix == "" {
		indexPrefix = "knowledge_chunks"
	}

	return &ElasticsearchIndexer{
		client:      client,
		indexPrefix: indexPrefix,
		indexCache:  make(map[string]bool),
	}, nil
}

func (e *ElasticsearchIndexer) indexName(collection string) string {
	return fmt.Sprintf("%s_%s", e.indexPrefix, collection)
}

func (e *ElasticsearchIndexer) ensureIndex(ctx context.Context, collection string) error {
	name := e.indexName(collection)

	e.mu.Lock()
	if e.indexCache[name] {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	req := esapi.IndicesExistsRequest{
		Index: []string{name},
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.NewVectorStoreUnavailable("failed to check elasticsearch index").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		e.mu.Lock()
		e.indexCache[name] = true
		e.mu.Unlock()
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"entry_id":    map[string]interface{}{"type": "long"},
				"document_id": map[string]interface{}{"type": "keyword"},
				"content": map[string]interface{}{
					"type":          "text",
					"index_options": "offsets",
				},
				"metadata": map[string]interface{}{"type": "object", "enabled": true},
			},
		},
	}

	body, _ := json.Marshal(mapping)
	createReq := esapi.IndicesCreateRequest{
		Index: name,
		Body:  bytes.NewReader(body),
	}
	createResp, err := createReq.Do(ctx, e.client)
	if err != nil {
		return errors.NewVectorStoreUnavailable("failed to create elasticsearch index").WithCause(err)
	}
	defer createResp.Body.Close()

	if createResp.IsError() {
		return errors.NewVectorStoreError(fmt.Sprintf("create index error: %s", createResp.String()))
	}

	e.mu.Lock()
	e.indexCache[name] = true
	e.mu.Unlock()
	return nil
}

func (e *ElasticsearchIndexer) Index(ctx context.Context, collection string, entries []IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := e.ensureIndex(ctx, collection); err != nil {
		return err
	}

	for _, entry := range entries {
		doc := map[string]interface{}{
			"entry_id":    entry.ID,
			"document_id": entry.DocumentID,
			"content":     entry.Content,
			"metadata":    entry.Metadata,
		}

		payload, _ := json.Marshal(doc)
		req := esapi.IndexRequest{
			Index:      e.indexName(collection),
			DocumentID: strconv.FormatInt(entry.ID, 10),
			Body:       bytes.NewReader(payload),
			Refresh:    "true",
		}

		resp, err := req.Do(ctx, e.client)
		if err != nil {
			return errors.NewVectorStoreUnavailable("elasticsearch index request failed").WithCause(err)
		}
		if resp.IsError() {
			msg := resp.String()
			resp.Body.Close()
			return errors.NewVectorStoreError(fmt.Sprintf("index entry error: %s", msg))
		}
		resp.Body.Close()
	}
	return nil
}

func (e *ElasticsearchIndexer) Search(ctx context.Context, req FulltextSearchRequest) ([]SearchMatch, error) {
	if req.TopK <= 0 {
		return nil, errors.NewInvalidArgument(fmt.Sprintf("topK must be positive, got %d", req.TopK))
	}
	if err := e.ensureIndex(ctx, req.Collection); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"size": req.TopK,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"content": map[string]interface{}{
					"query": req.Query,
				},
			},
		},
		// 同分时按entry_id升序，保证结果确定性
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"entry_id": "asc"},
		},
	}

	payload, _ := json.Marshal(body)
	searchReq := esapi.SearchRequest{
		Index: []string{e.indexName(req.Collection)},
		Body:  bytes.NewReader(payload),
	}

	resp, err := searchReq.Do(ctx, e.client)
	if err != nil {
		return nil, errors.NewVectorStoreUnavailable("elasticsearch search request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, errors.NewVectorStoreError(fmt.Sprintf("search error: %s", resp.String()))
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					EntryID    int64             `json:"entry_id"`
					DocumentID string            `json:"document_id"`
					Content    string            `json:"content"`
					Metadata   map[string]string `json:"metadata"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewVectorStoreError("failed to decode search response").WithCause(err)
	}

	matches := make([]SearchMatch, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		matches = append(matches, SearchMatch{
			EntryID:    hit.Source.EntryID,
			DocumentID: hit.Source.DocumentID,
			Content:    hit.Source.Content,
			Score:      hit.Score,
			Metadata:   hit.Source.Metadata,
		})
	}
	return matches, nil
}

func (e *ElasticsearchIndexer) DeleteByDocument(ctx context.Context, collection, documentID string) (int64, error) {
	if err := e.ensureIndex(ctx, collection); err != nil {
		return 0, err
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"document_id": documentID,
			},
		},
	}

	body, _ := json.Marshal(query)
	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:   []string{e.indexName(collection)},
		Body:    bytes.NewReader(body),
		Refresh: &refresh,
	}

	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return 0, errors.NewVectorStoreUnavailable("elasticsearch delete request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return 0, errors.NewVectorStoreError(fmt.Sprintf("delete document error: %s", resp.String()))
	}

	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, errors.NewVectorStoreError("failed to decode delete response").WithCause(err)
	}
	return result.Deleted, nil
}

func (e *ElasticsearchIndexer) Ready() bool {
	if e.client == nil {
		return false
	}
	resp, err := e.client.Ping()
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return !resp.IsError()
}
