package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	wvmodels "github.com/weaviate/weaviate/entities/models"
	"gorm.io/gorm"
)

const (
	scopeDigestKeyPrefix = "scope_digest:"
	scopeDigestTTL       = 24 * time.Hour
	scopeChunkSize       = 2000
	embeddingBatchSize   = 100
	ScopeChunkClass      = "ScopeChunk"
)

// ScopeDigestStore remembers the last indexed digest per claim so unchanged
// re-uploads skip the embedding pipeline.
type ScopeDigestStore interface {
	GetDigest(claimId int) (string, bool, error)
	SetDigest(claimId int, digest string, ttl time.Duration) error
}

// RedisDigestStore is the production store. Degrades to miss when Redis is
// down, which only costs a redundant re-index.
type RedisDigestStore struct{}

func (RedisDigestStore) GetDigest(claimId int) (string, bool, error) {
	return config.GetRedisValue(scopeDigestKey(claimId))
}

func (RedisDigestStore) SetDigest(claimId int, digest string, ttl time.Duration) error {
	return config.SetRedisValue(scopeDigestKey(claimId), digest, ttl)
}

func scopeDigestKey(claimId int) string {
	return fmt.Sprintf("%s%d", scopeDigestKeyPrefix, claimId)
}

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type OpenAIEmbedder struct {
	Client *openai.Client
	Model  openai.EmbeddingModel
}

// EmbedTexts embeds in batches of at most 100 inputs per request.
func (e OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.Client == nil {
		return nil, utils.NewUpstreamError("openai", errors.New("client is not configured"))
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := e.Client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[start:end],
			Model: e.Model,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding response size mismatch: sent %d got %d", end-start, len(resp.Data))
		}
		for _, d := range resp.Data {
			vectors = append(vectors, d.Embedding)
		}
	}
	return vectors, nil
}

type ChunkIndexer interface {
	IndexScopeChunks(ctx context.Context, businessId string, claimId int, version int, chunks []string, vectors [][]float32) error
}

type WeaviateChunkIndexer struct {
	Client *weaviate.Client
}

// IndexScopeChunks upserts chunk objects under deterministic ids so
// re-indexing the same claim overwrites in place instead of accumulating.
func (w WeaviateChunkIndexer) IndexScopeChunks(ctx context.Context, businessId string, claimId int, version int, chunks []string, vectors [][]float32) error {
	if w.Client == nil {
		return utils.NewUpstreamError("weaviate", errors.New("client is not configured"))
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	objects := make([]*wvmodels.Object, 0, len(chunks))
	for i, chunk := range chunks {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d:%d", businessId, claimId, i)))
		objects = append(objects, &wvmodels.Object{
			Class: ScopeChunkClass,
			ID:    strfmt.UUID(id.String()),
			Properties: map[string]interface{}{
				"businessId": businessId,
				"claimId":    claimId,
				"version":    version,
				"chunkIndex": i,
				"content":    chunk,
			},
			Vector: vectors[i],
		})
	}

	_, err := w.Client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	return err
}

// EnsureScopeChunkClass creates the chunk class if absent. Safe to call on
// every startup; an already-exists error is ignored.
func EnsureScopeChunkClass(ctx context.Context, client *weaviate.Client) error {
	if client == nil {
		return nil
	}

	exists, err := client.Schema().ClassExistenceChecker().WithClassName(ScopeChunkClass).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	class := &wvmodels.Class{
		Class:      ScopeChunkClass,
		Vectorizer: "none",
		Properties: []*wvmodels.Property{
			{Name: "businessId", DataType: []string{"text"}},
			{Name: "claimId", DataType: []string{"int"}},
			{Name: "version", DataType: []string{"int"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "content", DataType: []string{"text"}},
		},
	}
	return client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

// ScopeIngestor runs the change-aware ingestion gate. Any collaborator may
// be nil; ingestion then records the digest and skips that stage.
type ScopeIngestor struct {
	Digests ScopeDigestStore
	Embedd  Embedder
	Indexer ChunkIndexer
}

func NewScopeIngestor() *ScopeIngestor {
	s := &ScopeIngestor{Digests: RedisDigestStore{}}
	if client := config.GetOpenAIClient(); client != nil {
		s.Embedd = OpenAIEmbedder{Client: client, Model: config.GetEmbeddingModel()}
	}
	if client := config.GetWeaviateClient(); client != nil {
		s.Indexer = WeaviateChunkIndexer{Client: client}
	}
	return s
}

type IngestResult struct {
	Reindexed  bool   `json:"reindexed"`
	ChunkCount int    `json:"chunk_count"`
	TextDigest string `json:"text_digest"`
}

// IngestScope digests the extracted scope text and re-indexes it only when
// the digest differs from the last recorded one. Reindexed reports whether
// the text changed. Embedding and index failures are logged and tolerated;
// the structural ingest still succeeds.
func (s *ScopeIngestor) IngestScope(ctx context.Context, businessId string, claimId int, extractedText string) (*IngestResult, error) {
	if businessId == "" {
		return nil, utils.NewValidationError("business_id", "business id is required")
	}
	if strings.TrimSpace(extractedText) == "" {
		return nil, utils.NewValidationError("extracted_text", "extracted text is required")
	}

	if _, err := models.GetClaim(ctx, businessId, claimId); err != nil {
		return nil, err
	}
	scope, err := models.GetLatestScopeDocument(ctx, businessId, claimId)
	if err != nil {
		return nil, err
	}

	digest := utils.Fingerprint([]byte(extractedText))
	result := &IngestResult{TextDigest: digest}

	if !ShouldReindex(s.Digests, claimId, digest) {
		// Unchanged since last index; nothing to do but record the fact.
		return result, s.recordIngestActivity(ctx, businessId, claimId, result)
	}

	chunks := SplitTextChunks(extractedText, scopeChunkSize)
	result.ChunkCount = len(chunks)

	s.indexAndRecordDigest(ctx, businessId, claimId, scope.Version, digest, chunks)

	result.Reindexed = true
	return result, s.recordIngestActivity(ctx, businessId, claimId, result)
}

// indexAndRecordDigest embeds and upserts the chunks, then records the
// digest only for text the index actually reflects; after a failed embed or
// upsert the next ingest must retry instead of skipping for the whole TTL.
// All failures here are logged and tolerated.
func (s *ScopeIngestor) indexAndRecordDigest(ctx context.Context, businessId string, claimId int, version int, digest string, chunks []string) {
	indexed := true
	if s.Embedd != nil && s.Indexer != nil {
		vectors, embErr := s.Embedd.EmbedTexts(ctx, chunks)
		if embErr != nil {
			indexed = false
			config.LogWarn(config.GetLogger(), "workflow/ingestWorkflow.go", "IngestScope", "EmbedTexts", embErr)
		} else if idxErr := s.Indexer.IndexScopeChunks(ctx, businessId, claimId, version, chunks, vectors); idxErr != nil {
			indexed = false
			config.LogWarn(config.GetLogger(), "workflow/ingestWorkflow.go", "IngestScope", "IndexScopeChunks", idxErr)
		}
	}

	if indexed && s.Digests != nil {
		if setErr := s.Digests.SetDigest(claimId, digest, scopeDigestTTL); setErr != nil {
			config.LogWarn(config.GetLogger(), "workflow/ingestWorkflow.go", "IngestScope", "Digests.SetDigest", setErr)
		}
	}
}

// ShouldReindex reports whether the digest differs from the last recorded
// one. A missing store or a store error counts as changed; worst case is a
// redundant re-index, never a stale one.
func ShouldReindex(store ScopeDigestStore, claimId int, digest string) bool {
	if store == nil {
		return true
	}
	last, found, err := store.GetDigest(claimId)
	if err != nil {
		config.LogWarn(config.GetLogger(), "workflow/ingestWorkflow.go", "ShouldReindex", "store.GetDigest", err)
		return true
	}
	return !found || last != digest
}

func (s *ScopeIngestor) recordIngestActivity(ctx context.Context, businessId string, claimId int, result *IngestResult) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reason := "Scope text unchanged; index left as is."
		if result.Reindexed {
			reason = fmt.Sprintf("Scope text indexed in %d chunks.", result.ChunkCount)
		}
		return models.AppendClaimActivity(tx, ctx, businessId, claimId, models.ActivityActionScopeIngested,
			"", "", reason,
			&models.ActivityDetails{ScopeIngested: &models.ScopeIngestedDetails{
				Reindexed:  result.Reindexed,
				ChunkCount: result.ChunkCount,
				TextDigest: result.TextDigest,
			}})
	})
}

// SplitTextChunks breaks text into chunks of at most maxLen bytes, preferring
// paragraph boundaries. Oversized paragraphs are hard-split.
func SplitTextChunks(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = scopeChunkSize
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len(para) > maxLen {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			// Back the cut up to a rune boundary so a multi-byte rune is
			// never split across chunks.
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			chunks = append(chunks, para[:cut])
			para = para[cut:]
		}

		if current.Len() > 0 && current.Len()+2+len(para) > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
