// Package embedder turns keyword terms into vectors.
//
// Providers (Jina AI, OpenAI, a local n-gram hasher) implement the Embedder
// interface. The clusterer does not talk to providers directly; it consumes an
// EmbedFunc, which BatchEmbedFunc builds from any Embedder:
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	embed := embedder.BatchEmbedFunc(emb, embedder.DefaultBatchSize)
//	vectors, err := embed(ctx, []string{"running shoes", "trail shoes"}, emb.Model())
//
// # Provider Selection
//
//  1. If SEMCLUSTER_EMBEDDING_PROVIDER is set, use it
//  2. Else if JINA_API_KEY is set, use Jina AI
//  3. Else if OPENAI_API_KEY is set, use OpenAI
//  4. Else use the local provider (offline)
//
// Remote calls retry with exponential backoff. 4xx responses other than 429
// are returned immediately as *APIError.
//
// # Caching
//
// Cache memoizes whole term sets. The key is the sorted term set plus the
// model id, so a permutation of the same keywords is a hit and the vectors
// come back aligned to the caller's order:
//
//	cache := embedder.NewCache(0) // 0 = unbounded
//	vecs, err := cache.GetOrCompute(ctx, terms, model, embed)
//
// Concurrent misses for the same key share one computation. Errors are not
// cached. Returned slices are copies and may be modified by the caller.
package embedder
