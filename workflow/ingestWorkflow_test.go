package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"bitbucket.org/ridgelinecs/supplements_backend/utils"
)

type fakeDigestStore struct {
	digests map[int]string
	err     error
}

func (f *fakeDigestStore) GetDigest(claimId int) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	d, ok := f.digests[claimId]
	return d, ok, nil
}

func (f *fakeDigestStore) SetDigest(claimId int, digest string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	if f.digests == nil {
		f.digests = map[int]string{}
	}
	f.digests[claimId] = digest
	return nil
}

func TestShouldReindex(t *testing.T) {
	digest := utils.Fingerprint([]byte("scope text"))

	t.Run("first sight reindexes", func(t *testing.T) {
		store := &fakeDigestStore{}
		if !ShouldReindex(store, 1, digest) {
			t.Errorf("unknown claim should reindex")
		}
	})

	t.Run("unchanged digest skips", func(t *testing.T) {
		store := &fakeDigestStore{digests: map[int]string{1: digest}}
		if ShouldReindex(store, 1, digest) {
			t.Errorf("matching digest should not reindex")
		}
	})

	t.Run("changed digest reindexes", func(t *testing.T) {
		store := &fakeDigestStore{digests: map[int]string{1: digest}}
		changed := utils.Fingerprint([]byte("scope text v2"))
		if !ShouldReindex(store, 1, changed) {
			t.Errorf("changed digest should reindex")
		}
	})

	t.Run("other claim does not interfere", func(t *testing.T) {
		store := &fakeDigestStore{digests: map[int]string{2: digest}}
		if !ShouldReindex(store, 1, digest) {
			t.Errorf("digest recorded for another claim should not suppress reindex")
		}
	})

	t.Run("store error degrades to reindex", func(t *testing.T) {
		store := &fakeDigestStore{err: errors.New("redis down")}
		if !ShouldReindex(store, 1, digest) {
			t.Errorf("store failure must degrade to reindex, not skip")
		}
	})

	t.Run("nil store always reindexes", func(t *testing.T) {
		if !ShouldReindex(nil, 1, digest) {
			t.Errorf("absent store must behave as always-miss")
		}
	})
}

func TestSplitTextChunks(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := SplitTextChunks("roof scope", 100)
		if len(chunks) != 1 || chunks[0] != "roof scope" {
			t.Errorf("got %v", chunks)
		}
	})

	t.Run("empty text yields no chunks", func(t *testing.T) {
		if chunks := SplitTextChunks("   \n\n  ", 100); len(chunks) != 0 {
			t.Errorf("got %v", chunks)
		}
	})

	t.Run("paragraphs pack until the limit", func(t *testing.T) {
		text := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40) + "\n\n" + strings.Repeat("c", 40)
		chunks := SplitTextChunks(text, 90)
		if len(chunks) != 2 {
			t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
		}
		if !strings.Contains(chunks[0], "a") || !strings.Contains(chunks[0], "b") {
			t.Errorf("first chunk should pack two paragraphs: %q", chunks[0])
		}
	})

	t.Run("oversized paragraph is hard split", func(t *testing.T) {
		text := strings.Repeat("x", 250)
		chunks := SplitTextChunks(text, 100)
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if len(c) > 100 {
				t.Errorf("chunk %d exceeds limit: %d bytes", i, len(c))
			}
		}
		if strings.Join(chunks, "") != text {
			t.Errorf("hard split lost content")
		}
	})

	t.Run("all chunks respect the limit", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 50; i++ {
			b.WriteString(strings.Repeat("p", 30+i))
			b.WriteString("\n\n")
		}
		for i, c := range SplitTextChunks(b.String(), 120) {
			if len(c) > 120 {
				t.Errorf("chunk %d exceeds limit: %d bytes", i, len(c))
			}
		}
	})

	t.Run("hard split never cuts a rune", func(t *testing.T) {
		text := strings.Repeat("é", 150)
		chunks := SplitTextChunks(text, 101)
		for i, c := range chunks {
			if !utf8.ValidString(c) {
				t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
			}
			if len(c) > 101 {
				t.Errorf("chunk %d exceeds limit: %d bytes", i, len(c))
			}
		}
		if strings.Join(chunks, "") != text {
			t.Errorf("rune-boundary split lost content")
		}
	})
}

func TestEmbedTextsUnconfiguredClient(t *testing.T) {
	_, err := OpenAIEmbedder{}.EmbedTexts(context.Background(), []string{"scope text"})
	if !errors.Is(err, utils.ErrorUpstreamUnavailable) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestIndexScopeChunksUnconfiguredClient(t *testing.T) {
	err := WeaviateChunkIndexer{}.IndexScopeChunks(context.Background(), "biz-1", 1, 1, []string{"chunk"}, [][]float32{{0.1}})
	if !errors.Is(err, utils.ErrorUpstreamUnavailable) {
		t.Errorf("expected upstream error, got %v", err)
	}
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return make([][]float32, len(texts)), nil
}

type fakeIndexer struct{ err error }

func (f fakeIndexer) IndexScopeChunks(context.Context, string, int, int, []string, [][]float32) error {
	return f.err
}

func TestIndexAndRecordDigest(t *testing.T) {
	digest := utils.Fingerprint([]byte("scope text"))
	chunks := []string{"scope text"}

	t.Run("successful index records the digest", func(t *testing.T) {
		store := &fakeDigestStore{}
		s := &ScopeIngestor{Digests: store, Embedd: fakeEmbedder{}, Indexer: fakeIndexer{}}
		s.indexAndRecordDigest(context.Background(), "biz-1", 1, 1, digest, chunks)
		if got, ok := store.digests[1]; !ok || got != digest {
			t.Errorf("digest not recorded after successful index: %v", store.digests)
		}
	})

	t.Run("no index configured still records the digest", func(t *testing.T) {
		store := &fakeDigestStore{}
		s := &ScopeIngestor{Digests: store}
		s.indexAndRecordDigest(context.Background(), "biz-1", 1, 1, digest, chunks)
		if _, ok := store.digests[1]; !ok {
			t.Errorf("digest should be recorded when indexing is not configured")
		}
	})

	t.Run("embed failure leaves the gate open", func(t *testing.T) {
		store := &fakeDigestStore{}
		s := &ScopeIngestor{Digests: store, Embedd: fakeEmbedder{err: errors.New("rate limited")}, Indexer: fakeIndexer{}}
		s.indexAndRecordDigest(context.Background(), "biz-1", 1, 1, digest, chunks)
		if _, ok := store.digests[1]; ok {
			t.Errorf("digest recorded despite failed embedding; next ingest would skip the retry")
		}
		if !ShouldReindex(store, 1, digest) {
			t.Errorf("gate must stay open after a failed index")
		}
	})

	t.Run("upsert failure leaves the gate open", func(t *testing.T) {
		store := &fakeDigestStore{}
		s := &ScopeIngestor{Digests: store, Embedd: fakeEmbedder{}, Indexer: fakeIndexer{err: errors.New("batch rejected")}}
		s.indexAndRecordDigest(context.Background(), "biz-1", 1, 1, digest, chunks)
		if _, ok := store.digests[1]; ok {
			t.Errorf("digest recorded despite failed upsert; next ingest would skip the retry")
		}
	})
}
