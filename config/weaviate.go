package config

import (
	"os"
	"strings"
	"sync"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

var (
	weaviateClient *weaviate.Client
	weaviateOnce   sync.Once
)

// GetWeaviateClient returns the shared Weaviate client, or nil when
// WEAVIATE_URL is not configured. A nil client means the semantic index is
// absent; ingestion still succeeds, it just skips indexing.
func GetWeaviateClient() *weaviate.Client {
	weaviateOnce.Do(func() {
		rawURL := strings.TrimSpace(os.Getenv("WEAVIATE_URL"))
		if rawURL == "" {
			return
		}

		cfg := weaviate.Config{
			Host:   rawURL,
			Scheme: "http",
		}
		if strings.HasPrefix(rawURL, "https://") {
			cfg.Scheme = "https"
			cfg.Host = strings.TrimPrefix(rawURL, "https://")
		} else if strings.HasPrefix(rawURL, "http://") {
			cfg.Host = strings.TrimPrefix(rawURL, "http://")
		}

		client, err := weaviate.NewClient(cfg)
		if err != nil {
			LogError(GetLogger(), "config/weaviate.go", "GetWeaviateClient", "weaviate.NewClient", rawURL, err)
			return
		}
		weaviateClient = client
	})
	return weaviateClient
}
