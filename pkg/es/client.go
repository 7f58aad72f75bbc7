// Package es 提供了对话归档在 Elasticsearch 中的索引和检索。
package es

import (
	"bytes"
	"chat-widget-go/internal/config"
	"chat-widget-go/internal/model"
	"chat-widget-go/pkg/log"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

const exchangeMapping = `{
	"mappings": {
		"properties": {
			"event_id": { "type": "keyword" },
			"kind": { "type": "keyword" },
			"session_id": { "type": "keyword" },
			"transcript_id": { "type": "keyword" },
			"category": { "type": "keyword" },
			"question": { "type": "text" },
			"answer": { "type": "text" },
			"occurred_at": { "type": "date" }
		}
	}
}`

// InitES 初始化 Elasticsearch 客户端并确保归档索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(exchangeMapping)),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// ExchangeIndex 定义了归档索引的写入和检索操作。
type ExchangeIndex interface {
	Index(ctx context.Context, doc model.ExchangeDocument) error
	Search(ctx context.Context, query string, size int) ([]model.ExchangeSearchHit, error)
}

type exchangeIndex struct {
	client    *elasticsearch.Client
	indexName string
}

// NewExchangeIndex 创建归档索引的访问对象。
func NewExchangeIndex(client *elasticsearch.Client, indexName string) ExchangeIndex {
	return &exchangeIndex{client: client, indexName: indexName}
}

// Index 以事件 ID 作为文档 ID 写入，重复消费同一事件不会产生重复文档。
func (e *exchangeIndex) Index(ctx context.Context, doc model.ExchangeDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      e.indexName,
		DocumentID: doc.EventID,
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("索引对话事件到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index exchange")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64                `json:"_score"`
			Source model.ExchangeDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 在问题、回答和分类上做全文检索。
func (e *exchangeIndex) Search(ctx context.Context, query string, size int) ([]model.ExchangeSearchHit, error) {
	if size <= 0 {
		size = 20
	}
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"question^2", "answer", "category"},
			},
		},
		"sort": []interface{}{"_score", map[string]string{"occurred_at": "desc"}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.indexName),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("检索归档失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("检索归档失败: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析检索结果失败: %w", err)
	}
	hits := make([]model.ExchangeSearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, model.ExchangeSearchHit{ExchangeDocument: h.Source, Score: h.Score})
	}
	return hits, nil
}
