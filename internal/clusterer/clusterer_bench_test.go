package clusterer

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func BenchmarkGenerateClusters(b *testing.B) {
	for _, groups := range []int{10, 50} {
		for _, parallel := range []bool{false, true} {
			b.Run(fmt.Sprintf("keywords=%d/parallel=%v", groups*6, parallel), func(b *testing.B) {
				cfg := DefaultConfig()
				cfg.MinSimilarity = 0.9
				cfg.IncludeHeatmap = false

				_, f := groupedKeywords(groups, 6)
				c, err := New(cfg, WithEmbedFunc(f.embed), WithLogger(zerolog.Nop()))
				if err != nil {
					b.Fatal(err)
				}

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					kws, _ := groupedKeywords(groups, 6)
					if _, err := c.GenerateClusters(context.Background(), kws, testCategory, testDomain, parallel); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
