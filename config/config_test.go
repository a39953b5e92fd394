package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.AppPort)
	assert.Equal(t, 15, cfg.Arxiv.MaxResults)
	assert.Equal(t, 15, cfg.Arxiv.TimeoutSecs)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "research_docs", cfg.Qdrant.Collection)
	assert.Equal(t, 60, cfg.Groq.TimeoutSecs)
	require.NotNil(t, cfg.Groq.Temperature)
	assert.InDelta(t, 0.3, *cfg.Groq.Temperature, 1e-9)
	require.NotNil(t, cfg.Arxiv.RecencyAware)
	assert.True(t, *cfg.Arxiv.RecencyAware)
	assert.Equal(t, 10, cfg.Resend.TimeoutSecs)
	assert.InDelta(t, 0.3, cfg.Rank.Threshold, 1e-9)
	assert.Equal(t, 2, cfg.Rank.OverFetch)
	assert.Equal(t, 10, cfg.Rank.TopK)
	assert.Equal(t, 8, cfg.Rank.MaxSources)
}

func TestLoad_YAMLOverlaidByEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_port: 9000
qdrant:
  host: qdrant.internal
  collection: papers
rank:
  threshold: 0.5
`), 0o644))

	t.Setenv("QDRANT_COLLECTION", "papers_v2")
	t.Setenv("RANK_OVERFETCH", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.AppPort)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, "papers_v2", cfg.Qdrant.Collection)
	assert.InDelta(t, 0.5, cfg.Rank.Threshold, 1e-9)
	assert.Equal(t, 3, cfg.Rank.OverFetch)
}

func TestLoad_ExplicitZeroValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{
			name: "env",
			env:  map[string]string{"ARXIV_RECENCY_AWARE": "false", "GROQ_TEMPERATURE": "0"},
		},
		{
			name: "yaml",
			yaml: "arxiv:\n  recency_aware: false\ngroq:\n  temperature: 0\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.yaml != "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))
			}

			cfg, err := Load(path)
			require.NoError(t, err)

			require.NotNil(t, cfg.Arxiv.RecencyAware)
			assert.False(t, *cfg.Arxiv.RecencyAware)
			require.NotNil(t, cfg.Groq.Temperature)
			assert.Zero(t, *cfg.Groq.Temperature)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad number", func(t *testing.T) {
		t.Setenv("APP_PORT", "eighty")
		t.Setenv("RANK_THRESHOLD", "high")
		t.Setenv("ARXIV_RECENCY_AWARE", "sometimes")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APP_PORT")
		assert.Contains(t, err.Error(), "RANK_THRESHOLD")
		assert.Contains(t, err.Error(), "ARXIV_RECENCY_AWARE")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		needs   Needs
		wantErr string
	}{
		{
			name:    "everything missing",
			needs:   Needs{Qdrant: true, Mail: true},
			wantErr: "missing required configuration: GROQ_API_KEY, QDRANT_HOST, RESEND_API_KEY",
		},
		{
			name:  "cli run with memory index",
			cfg:   Config{Groq: GroqConfig{APIKey: "k"}},
			needs: Needs{},
		},
		{
			name:    "threshold out of range",
			cfg:     Config{Groq: GroqConfig{APIKey: "k"}, Rank: RankConfig{Threshold: 1.5}},
			wantErr: "RANK_THRESHOLD must be within [-1, 1], got 1.5",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate(tc.needs)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}
