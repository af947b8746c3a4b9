package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/tutorflow/llm"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant-backed VectorSearcher.
//
// Notes:
// - Qdrant point IDs are UUIDs; a stable UUID is derived from Document.ID.
// - Document content/metadata are stored in the point payload.
// - The searcher embeds query text via the injected llm.Embedder; Qdrant
//   itself only sees vectors.
type QdrantConfig struct {
	Host    string        `json:"host" yaml:"host"`
	Port    int           `json:"port" yaml:"port"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	AutoCreateCollection bool   `json:"auto_create_collection,omitempty" yaml:"auto_create_collection"`
	Distance             string `json:"distance,omitempty" yaml:"distance"`       // Cosine (default), Dot, Euclid
	VectorSize           int    `json:"vector_size,omitempty" yaml:"vector_size"` // Optional override; defaults to len(embedding)
}

// payload keys
const (
	qdrantIDField       = "doc_id"
	qdrantContentField  = "content"
	qdrantMetadataField = "metadata"
)

// QdrantSearcher implements VectorSearcher against Qdrant's REST API.
type QdrantSearcher struct {
	cfg      QdrantConfig
	embedder llm.Embedder

	baseURL string
	client  *http.Client
	logger  *zap.Logger

	ensureMu sync.Mutex
	ensured  map[string]bool
}

// NewQdrantSearcher creates a Qdrant-backed VectorSearcher.
func NewQdrantSearcher(cfg QdrantConfig, embedder llm.Embedder, logger *zap.Logger) *QdrantSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &QdrantSearcher{
		cfg:      cfg,
		embedder: embedder,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: cfg.Timeout},
		ensured:  make(map[string]bool),
		logger:   logger.With(zap.String("component", "qdrant_searcher")),
	}
}

var qdrantNamespace = uuid.MustParse("7c3f2a9e-1b5d-4c8e-9f6a-2d4b8e0c1a3f")

func qdrantPointID(docID string) string {
	// Stable UUID derived from document ID (supports any string input).
	return uuid.NewSHA1(qdrantNamespace, []byte(docID)).String()
}

func (s *QdrantSearcher) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		// Qdrant convention.
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *QdrantSearcher) doJSON(ctx context.Context, method, path string, in any, out any) error {
	endpoint := s.baseURL + path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *QdrantSearcher) ensureCollection(ctx context.Context, collection string, vectorSize int) error {
	if !s.cfg.AutoCreateCollection {
		return nil
	}
	if vectorSize <= 0 {
		return fmt.Errorf("qdrant vector size must be > 0")
	}

	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured[collection] {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": s.cfg.Distance,
		},
	}

	endpoint := fmt.Sprintf("%s/collections/%s", s.baseURL, url.PathEscape(collection))
	reqBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Qdrant returns 409 if the collection already exists.
	if resp.StatusCode != http.StatusConflict && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant create collection failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	s.ensured[collection] = true
	return nil
}

// Index embeds and upserts documents into a collection. Used for index
// bootstrap; the answering pipeline itself only calls Search.
func (s *QdrantSearcher) Index(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("qdrant collection is required")
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float64      `json:"vector"`
		Payload map[string]any `json:"payload,omitempty"`
	}

	vectorSize := s.cfg.VectorSize
	points := make([]point, 0, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document[%d] has empty id", i)
		}
		vec, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("embed document %s: %w", doc.ID, err)
		}
		if vectorSize == 0 {
			vectorSize = len(vec)
		}
		if len(vec) != vectorSize {
			return fmt.Errorf("document[%d] embedding dimension mismatch: got=%d want=%d", i, len(vec), vectorSize)
		}
		points = append(points, point{
			ID:     qdrantPointID(doc.ID),
			Vector: vec,
			Payload: map[string]any{
				qdrantIDField:       doc.ID,
				qdrantContentField:  doc.Content,
				qdrantMetadataField: doc.Metadata,
			},
		})
	}

	if err := s.ensureCollection(ctx, collection, vectorSize); err != nil {
		return err
	}

	req := struct {
		Points []point `json:"points"`
	}{Points: points}

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection))
	if err := s.doJSON(ctx, http.MethodPut, path, req, nil); err != nil {
		return err
	}

	s.logger.Debug("qdrant upsert completed",
		zap.String("collection", collection),
		zap.Int("count", len(docs)))
	return nil
}

// Search embeds the query text and runs a Qdrant similarity search.
// Where conditions map to payload match filters on metadata fields.
func (s *QdrantSearcher) Search(ctx context.Context, collection, query string, opts SearchOptions) (*SearchResponse, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}
	if opts.TopK <= 0 {
		return &SearchResponse{Results: []SearchResult{}}, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	req := map[string]any{
		"vector":       queryVec,
		"limit":        opts.TopK,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(opts.Where) > 0 {
		req["filter"] = buildQdrantFilter(opts.Where)
	}

	type qdrantResult struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	var resp struct {
		Result []qdrantResult `json:"result"`
		Status string         `json:"status"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := s.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		res := SearchResult{Score: r.Score}
		if r.Payload != nil {
			if v, ok := r.Payload[qdrantIDField].(string); ok {
				res.ID = v
			}
			if v, ok := r.Payload[qdrantContentField].(string); ok {
				res.Content = v
			}
			if m, ok := r.Payload[qdrantMetadataField].(map[string]any); ok {
				res.Metadata = m
			}
		}
		if res.ID == "" {
			// Fallback to point ID if payload does not include doc_id.
			res.ID = fmt.Sprint(r.ID)
		}
		results = append(results, res)
	}

	return &SearchResponse{Results: results, Count: len(results)}, nil
}

// buildQdrantFilter converts Where conditions into a Qdrant must-match filter.
func buildQdrantFilter(where map[string]any) map[string]any {
	must := make([]map[string]any, 0, len(where))
	for field, value := range where {
		must = append(must, map[string]any{
			"key":   qdrantMetadataField + "." + field,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}
}
