package embedder

import (
	"context"
	"fmt"
	"testing"
)

func benchTerms(n int) []string {
	terms := make([]string, n)
	for i := range terms {
		terms[i] = fmt.Sprintf("running shoes model %d", i)
	}
	return terms
}

func BenchmarkCacheKey(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		terms := benchTerms(n)
		b.Run(fmt.Sprintf("terms=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = CacheKey(terms, "m")
			}
		})
	}
}

func BenchmarkCacheHit(b *testing.B) {
	ctx := context.Background()
	local, _ := NewLocalProvider()
	embed := BatchEmbedFunc(local, DefaultBatchSize)
	terms := benchTerms(200)

	for _, size := range []int{0, 16} {
		cache := NewCache(size)
		if _, err := cache.GetOrCompute(ctx, terms, DefaultLocalModel, embed); err != nil {
			b.Fatal(err)
		}
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := cache.GetOrCompute(ctx, terms, DefaultLocalModel, embed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLocalProvider(b *testing.B) {
	ctx := context.Background()
	provider, err := NewLocalProvider()
	if err != nil {
		b.Fatalf("NewLocalProvider() error = %v", err)
	}
	defer provider.Close()

	b.Run("single", func(b *testing.B) {
		req := EmbeddingRequest{Text: "best trail running shoes for women"}
		for i := 0; i < b.N; i++ {
			if _, err := provider.GenerateEmbedding(ctx, req); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("batch-50", func(b *testing.B) {
		req := BatchEmbeddingRequest{Texts: benchTerms(50)}
		for i := 0; i < b.N; i++ {
			if _, err := provider.GenerateBatch(ctx, req); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkNormalizeVector(b *testing.B) {
	v := make([]float32, JinaDimension)
	for i := range v {
		v[i] = float32(i % 17)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizeVector(v)
	}
}
