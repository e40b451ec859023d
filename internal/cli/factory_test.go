package cli

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentwright/internal/config"
	"github.com/aretw0/agentwright/pkg/adapters/anthropic"
	"github.com/aretw0/agentwright/pkg/adapters/openai"
	"github.com/aretw0/agentwright/pkg/domain"
	"github.com/aretw0/agentwright/pkg/reasoning"
)

func testConfig(t *testing.T, kind string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Kind = kind
	cfg.Store.Dir = filepath.Join(t.TempDir(), "runs")
	cfg.Workbench = filepath.Join(t.TempDir(), "workbench")
	return &cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewApp_MemoryStore(t *testing.T) {
	app := newTestApp(t, testConfig(t, config.StoreMemory))
	ctx := context.Background()

	res, err := app.Engine.Advance(ctx, "r1", "build me a weather agent")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuspended, res.Kind)
	assert.Equal(t, domain.StepGetUserMessage, res.Step)
	assert.Equal(t, int64(3), res.Seq, "development path runs define_scope")

	scope, err := os.ReadFile(filepath.Join(app.Config.Workbench, "r1", "scope.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(scope), "# Scope"))

	families, err := app.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "agentwright_advance_results_total")
	assert.Contains(t, names, "agentwright_step_visits_total")
}

func TestNewApp_FileStoreResumes(t *testing.T) {
	cfg := testConfig(t, config.StoreFile)
	ctx := context.Background()

	first := newTestApp(t, cfg)
	_, err := first.Engine.Advance(ctx, "r1", "how do tools work?")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newTestApp(t, cfg)
	head, err := second.Engine.Head(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StepGetUserMessage, head.Next.Kind)

	res, err := second.Engine.Advance(ctx, "r1", "thanks, bye")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultTerminal, res.Kind)
}

func TestNewApp_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, config.StoreRedis)
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Redis.Prefix = "test:run:"

	app := newTestApp(t, cfg)
	_, err := app.Engine.Advance(context.Background(), "r1", "how do tools work?")
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:run:r1"))
	runs, err := app.Engine.Runs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, runs)
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t, config.StoreRedis)
	cfg.Store.Redis.Addr = addr
	_, err := NewApp(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect redis")
}

func TestNewApp_SealedStore(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	cfg := testConfig(t, config.StoreFile)
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString(key)
	cfg.Store.MaskPII = true

	app := newTestApp(t, cfg)
	ctx := context.Background()
	_, err = app.Engine.Advance(ctx, "r1", "how do tools work? mail me at jane@example.com")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.Store.Dir, "r1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tools work")
	assert.NotContains(t, string(raw), "jane@example.com")

	head, err := app.Engine.Head(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StepGetUserMessage, head.Next.Kind, "reads open the seal")
}

func TestNewApp_DocumentationCorpus(t *testing.T) {
	corpus := filepath.Join(t.TempDir(), "docs.yaml")
	require.NoError(t, os.WriteFile(corpus, []byte(`
chunks:
  - url: https://docs.example.com/tools
    chunk_number: 0
    title: Tools
    content: Tools let agents call code.
`), 0644))

	cfg := testConfig(t, config.StoreMemory)
	cfg.Docs.Corpus = corpus
	app := newTestApp(t, cfg)

	res, err := app.Engine.Advance(context.Background(), "r1", "build a tools agent")
	require.NoError(t, err)
	assert.True(t, res.Suspended())

	cfg.Docs.Corpus = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewApp(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "documentation corpus")
}

func TestNewApp_Logging(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	app, err := NewApp(context.Background(), cfg, &buf)
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Engine.Advance(context.Background(), "r1", "how?")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"msg":"suspend"`)
	assert.Contains(t, buf.String(), `"run_id":"r1"`)

	cfg.Log.Level = "loud"
	_, err = NewApp(context.Background(), cfg, &buf)
	assert.ErrorContains(t, err, "unknown log level")

	cfg.Log.Level = "info"
	cfg.Log.Format = "xml"
	_, err = NewApp(context.Background(), cfg, &buf)
	assert.ErrorContains(t, err, "unknown log format")
}

func TestCreateReasoner(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ReasoningConfig
		want    any
		wantErr bool
	}{
		{name: "Scripted", cfg: config.ReasoningConfig{Provider: config.ProviderScripted}, want: &reasoning.Scripted{}},
		{name: "OpenAI", cfg: config.ReasoningConfig{Provider: config.ProviderOpenAI, OpenAIAPIKey: "sk"}, want: &openai.Reasoner{}},
		{name: "Anthropic", cfg: config.ReasoningConfig{Provider: config.ProviderAnthropic, AnthropicAPIKey: "sk"}, want: &anthropic.Reasoner{}},
		{name: "Rate Limited", cfg: config.ReasoningConfig{Provider: config.ProviderOpenAI, OpenAIAPIKey: "sk", RateLimit: 2, Burst: 1}, want: &reasoning.Limited{}},
		{name: "Unknown", cfg: config.ReasoningConfig{Provider: "oracle"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := createReasoner(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestOverrideModels(t *testing.T) {
	m := reasoning.Models{Reasoner: "r", Primary: "p", Small: "s"}
	overrideModels(&m, config.ReasoningConfig{PrimaryModel: "gpt-custom"})
	assert.Equal(t, reasoning.Models{Reasoner: "r", Primary: "gpt-custom", Small: "s"}, m)
}
