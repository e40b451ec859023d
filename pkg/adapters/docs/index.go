package docs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/aretw0/agentwright/internal/logging"
)

const (
	// DefaultTopK is the number of chunks RetrieveRelevant returns.
	DefaultTopK = 5
	// MaxPageContent caps PageContent, in characters.
	MaxPageContent = 20000

	chunkSeparator = "\n\n---\n\n"
	embedBatch     = 64
)

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Index implements ports.DocumentIndex over an in-memory corpus.
//
// With an Embedder, chunks are ranked by cosine similarity between their
// embedding and the query's. Without one, or when embedding the query fails,
// a keyword score is used.
type Index struct {
	chunks   []Chunk
	embedder Embedder
	topK     int
	logger   *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithEmbedder enables semantic ranking.
func WithEmbedder(e Embedder) Option {
	return func(i *Index) { i.embedder = e }
}

// WithTopK sets how many chunks RetrieveRelevant returns.
func WithTopK(k int) Option {
	return func(i *Index) {
		if k > 0 {
			i.topK = k
		}
	}
}

// WithLogger sets the logger used for degraded retrievals.
func WithLogger(l *slog.Logger) Option {
	return func(i *Index) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an index over the corpus chunks.
func New(corpus *Corpus, opts ...Option) *Index {
	idx := &Index{
		topK:   DefaultTopK,
		logger: logging.NewNop(),
	}
	if corpus != nil {
		idx.chunks = append(idx.chunks, corpus.Chunks...)
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Open loads a corpus file and indexes it.
func Open(path string, opts ...Option) (*Index, error) {
	c, err := LoadCorpus(path)
	if err != nil {
		return nil, err
	}
	return New(c, opts...), nil
}

// Chunks returns a copy of the indexed chunks.
func (i *Index) Chunks() []Chunk {
	return append([]Chunk(nil), i.chunks...)
}

// EmbedMissing computes embeddings for chunks that have none.
func (i *Index) EmbedMissing(ctx context.Context) (int, error) {
	if i.embedder == nil {
		return 0, fmt.Errorf("no embedder configured")
	}

	var todo []int
	for n, ch := range i.chunks {
		if len(ch.Embedding) == 0 {
			todo = append(todo, n)
		}
	}

	for start := 0; start < len(todo); start += embedBatch {
		end := min(start+embedBatch, len(todo))
		texts := make([]string, 0, end-start)
		for _, n := range todo[start:end] {
			texts = append(texts, i.chunks[n].Title+"\n\n"+i.chunks[n].Content)
		}
		vecs, err := i.embedder.Embed(ctx, texts)
		if err != nil {
			return start, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vecs) != len(texts) {
			return start, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vecs), len(texts))
		}
		for k, n := range todo[start:end] {
			i.chunks[n].Embedding = vecs[k]
		}
	}
	return len(todo), nil
}

// ListDocumentationPages returns the sorted, distinct page URLs.
func (i *Index) ListDocumentationPages(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{}, len(i.chunks))
	var urls []string
	for _, ch := range i.chunks {
		if _, ok := seen[ch.URL]; ok {
			continue
		}
		seen[ch.URL] = struct{}{}
		urls = append(urls, ch.URL)
	}
	sort.Strings(urls)
	return urls, nil
}

// RetrieveRelevant returns the best chunks for query as markdown sections.
func (i *Index) RetrieveRelevant(ctx context.Context, query string) (string, error) {
	ranked := i.rank(ctx, query)
	if len(ranked) == 0 {
		return "No relevant documentation found.", nil
	}

	sections := make([]string, len(ranked))
	for n, ch := range ranked {
		sections[n] = fmt.Sprintf("# %s\n\n%s", ch.Title, ch.Content)
	}
	return strings.Join(sections, chunkSeparator), nil
}

// PageContent returns every chunk of a page in order under the page title.
func (i *Index) PageContent(ctx context.Context, url string) (string, error) {
	var page []Chunk
	for _, ch := range i.chunks {
		if ch.URL == url {
			page = append(page, ch)
		}
	}
	if len(page) == 0 {
		return fmt.Sprintf("No content found for URL: %s", url), nil
	}
	sort.SliceStable(page, func(a, b int) bool { return page[a].ChunkNumber < page[b].ChunkNumber })

	title, _, _ := strings.Cut(page[0].Title, " - ")
	parts := make([]string, 0, len(page)+1)
	parts = append(parts, "# "+title+"\n")
	for _, ch := range page {
		parts = append(parts, ch.Content)
	}
	return truncateRunes(strings.Join(parts, "\n\n"), MaxPageContent), nil
}

type scored struct {
	chunk Chunk
	score float64
}

func (i *Index) rank(ctx context.Context, query string) []Chunk {
	var results []scored
	if qv, ok := i.embedQuery(ctx, query); ok {
		for _, ch := range i.chunks {
			if len(ch.Embedding) == 0 {
				continue
			}
			results = append(results, scored{ch, cosine(qv, ch.Embedding)})
		}
	}
	if len(results) == 0 {
		terms := tokenize(query)
		for _, ch := range i.chunks {
			if s := keywordScore(terms, ch); s > 0 {
				results = append(results, scored{ch, s})
			}
		}
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].score > results[b].score })
	if len(results) > i.topK {
		results = results[:i.topK]
	}
	out := make([]Chunk, len(results))
	for n, r := range results {
		out[n] = r.chunk
	}
	return out
}

func (i *Index) embedQuery(ctx context.Context, query string) ([]float64, bool) {
	if i.embedder == nil {
		return nil, false
	}
	vecs, err := i.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		i.logger.Warn("query embedding failed, falling back to keywords", "err", err)
		return nil, false
	}
	return vecs[0], true
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for k := range a {
		dot += a[k] * b[k]
		na += a[k] * a[k]
		nb += b[k] * b[k]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// keywordScore counts query term hits, weighting the title twice.
func keywordScore(terms []string, ch Chunk) float64 {
	if len(terms) == 0 {
		return 0
	}
	title := strings.ToLower(ch.Title)
	body := strings.ToLower(ch.Summary + " " + ch.Content)
	var score float64
	for _, t := range terms {
		score += 2*float64(strings.Count(title, t)) + float64(strings.Count(body, t))
	}
	return score
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
