// scope-reindex forces re-embedding and re-indexing of stored scope text,
// e.g. after changing the chunking or the vector class. It clears the digest
// gate first so the ingestion path treats the text as new.
//
// Usage:
//   go run ./cmd/scope-reindex -business <id>            # all claims with a scope
//   go run ./cmd/scope-reindex -business <id> -claim 42  # one claim
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/ridgelinecs/supplements_backend/config"
	"bitbucket.org/ridgelinecs/supplements_backend/models"
	"bitbucket.org/ridgelinecs/supplements_backend/utils"
	"bitbucket.org/ridgelinecs/supplements_backend/workflow"
)

func main() {
	businessId := flag.String("business", "", "business id (required)")
	claimId := flag.Int("claim", 0, "claim id (0 = all claims)")
	flag.Parse()

	if *businessId == "" {
		fmt.Fprintln(os.Stderr, "usage: scope-reindex -business <id> [-claim <id>]")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if wv := config.GetWeaviateClient(); wv != nil {
		if err := workflow.EnsureScopeChunkClass(ctx, wv); err != nil {
			fmt.Fprintf(os.Stderr, "failed to ensure vector class: %v\n", err)
			os.Exit(1)
		}
	}

	var claimIds []int
	if *claimId > 0 {
		claimIds = []int{*claimId}
	} else {
		claims, err := models.GetClaims(ctx, *businessId, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list claims: %v\n", err)
			os.Exit(1)
		}
		for _, c := range claims {
			claimIds = append(claimIds, c.ID)
		}
	}

	ingestor := workflow.NewScopeIngestor()
	reindexed := 0
	for _, id := range claimIds {
		doc, err := models.GetLatestScopeDocument(ctx, *businessId, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				continue
			}
			fmt.Fprintf(os.Stderr, "claim %d: failed to load scope: %v\n", id, err)
			os.Exit(1)
		}

		if err := ingestor.Digests.SetDigest(id, "", 0); err != nil {
			fmt.Fprintf(os.Stderr, "claim %d: failed to clear digest: %v\n", id, err)
			os.Exit(1)
		}
		result, err := ingestor.IngestScope(ctx, *businessId, id, doc.ExtractedText)
		if err != nil {
			fmt.Fprintf(os.Stderr, "claim %d: ingest failed: %v\n", id, err)
			os.Exit(1)
		}
		fmt.Printf("claim %d: reindexed=%v chunks=%d\n", id, result.Reindexed, result.ChunkCount)
		if result.Reindexed {
			reindexed++
		}
	}
	fmt.Printf("Done: %d of %d claims reindexed\n", reindexed, len(claimIds))
}
