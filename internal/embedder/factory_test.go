package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name      string
		provider  string
		jinaKey   string
		openaiKey string
		want      string
	}{
		{name: "explicit jina provider", provider: "jina", want: ProviderJina},
		{name: "explicit provider is lowercased", provider: "OpenAI", want: ProviderOpenAI},
		{name: "explicit local provider", provider: "local", jinaKey: "k", want: ProviderLocal},
		{name: "jina key present", jinaKey: "test-key", want: ProviderJina},
		{name: "openai key present", openaiKey: "test-key", want: ProviderOpenAI},
		{name: "both keys, jina takes precedence", jinaKey: "a", openaiKey: "b", want: ProviderJina},
		{name: "no provider, no keys - fallback to local", want: ProviderLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvProvider, tt.provider)
			t.Setenv(EnvJinaAPIKey, tt.jinaKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)

			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("fallback to local", func(t *testing.T) {
		t.Setenv(EnvProvider, "")
		t.Setenv(EnvJinaAPIKey, "")
		t.Setenv(EnvOpenAIAPIKey, "")

		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("explicit remote provider without key", func(t *testing.T) {
		t.Setenv(EnvProvider, "openai")
		t.Setenv(EnvOpenAIAPIKey, "")

		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv(EnvProvider, "word2vec")

		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}

func TestNew(t *testing.T) {
	emb, err := New(Config{Provider: "jina", APIKey: "k", Model: "jina-embeddings-v2-base"})
	require.NoError(t, err)
	assert.Equal(t, "jina-embeddings-v2-base", emb.Model())

	emb, err = New(Config{Provider: ""})
	require.NoError(t, err)
	assert.Equal(t, DefaultLocalModel, emb.Model())

	_, err = New(Config{Provider: "bogus"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
