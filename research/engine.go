package research

import (
	"context"
	"fmt"
	"time"

	"deskresearch/pkg/embedding"
	"deskresearch/repository"
	"deskresearch/search"
	"deskresearch/summarize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCollection = "research_docs"
	DefaultMaxResults = 15
	DefaultTopK       = 10
	DefaultMaxSources = 8
)

type Summarizer interface {
	Summarize(ctx context.Context, query string, docs []repository.ScoredDocument) (string, error)
}

type Ranker interface {
	Rank(ctx context.Context, collection, query string, topK int) ([]repository.ScoredDocument, error)
}

type Config struct {
	Collection string
	Metric     repository.Metric
	MaxResults int
	TopK       int
	MaxSources int
}

// Engine runs fetch, index, rank and summarize for one query at a time. It
// holds no per-run state and is shared by all concurrent runs.
type Engine struct {
	searchEngine    search.SearchEngine
	embeddingClient embedding.Client
	index           repository.VectorIndex
	ranker          Ranker
	summarizer      Summarizer
	cfg             Config
	logger          *zap.Logger
}

func NewEngine(
	searchEngine search.SearchEngine,
	embeddingClient embedding.Client,
	index repository.VectorIndex,
	ranker Ranker,
	summarizer Summarizer,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Metric == "" {
		cfg.Metric = repository.MetricCosine
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultMaxSources
	}
	return &Engine{
		searchEngine:    searchEngine,
		embeddingClient: embeddingClient,
		index:           index,
		ranker:          ranker,
		summarizer:      summarizer,
		cfg:             cfg,
		logger:          logger,
	}
}

// Prepare creates the collection if it is missing. It is called once at
// startup and again by every run, which is cheap because it is idempotent.
func (e *Engine) Prepare(ctx context.Context) error {
	return e.index.EnsureCollection(ctx, e.cfg.Collection, e.embeddingClient.Dimension(), e.cfg.Metric)
}

// Run executes the pipeline for query. The returned error is nil on success,
// wraps ErrNoEvidence when nothing was fetched and ErrEncoding when the
// embedding step failed. The result is never nil.
func (e *Engine) Run(ctx context.Context, query string) (*Result, error) {
	return e.RunWithID(ctx, uuid.NewString(), query)
}

func (e *Engine) RunWithID(ctx context.Context, runID, query string) (*Result, error) {
	logger := e.logger.With(zap.String("run_id", runID))
	start := time.Now()
	res := &Result{RunID: runID, Sources: []repository.ScoredDocument{}}

	logger.Info("research started", zap.String("query", query))

	// fetch
	docs, err := e.searchEngine.Search(ctx, &search.SearchRequest{Query: query, MaxResults: e.cfg.MaxResults})
	if err != nil {
		logger.Warn("corpus fetch failed", zap.Error(err))
	}
	res.TotalFetched = len(docs)
	if len(docs) == 0 {
		res.Status = StatusError
		res.Kind = KindNoEvidence
		res.Message = "No papers found in arXiv"
		if err != nil {
			res.Message = "No papers could be retrieved from arXiv"
		}
		logger.Info("research finished without evidence", zap.Duration("elapsed", time.Since(start)))
		return res, fmt.Errorf("%w for %q", ErrNoEvidence, query)
	}

	// index
	if err := e.store(ctx, docs); err != nil {
		if isEncoding(err) {
			return e.fail(logger, res, KindEncodingFailed, err), err
		}
		logger.Warn("indexing failed, ranking may be degraded", zap.Error(err))
		res.warn("indexing failed: " + err.Error())
	}

	// rank
	evidence, err := e.ranker.Rank(ctx, e.cfg.Collection, query, e.cfg.TopK)
	if err != nil {
		if !isIndex(err) {
			err = fmt.Errorf("%w: %w", ErrEncoding, err)
			return e.fail(logger, res, KindEncodingFailed, err), err
		}
		logger.Warn("index search failed, continuing without evidence", zap.Error(err))
		res.warn("search failed: " + err.Error())
		evidence = []repository.ScoredDocument{}
	}
	res.RelevantCount = len(evidence)

	// summarize
	report, err := e.summarizer.Summarize(ctx, query, evidence)
	if err != nil {
		logger.Warn("summarization failed, returning degraded report", zap.Error(err))
		res.warn("summarization failed: " + err.Error())
		report = summarize.FailureMessage(err)
	}

	res.Status = StatusSuccess
	res.Report = report
	res.Sources = evidence
	if len(res.Sources) > e.cfg.MaxSources {
		res.Sources = res.Sources[:e.cfg.MaxSources]
	}

	logger.Info("research completed",
		zap.Int("total_fetched", res.TotalFetched),
		zap.Int("relevant", res.RelevantCount),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (e *Engine) store(ctx context.Context, docs []repository.Document) error {
	if err := e.Prepare(ctx); err != nil {
		return err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Title + " " + doc.Content
	}
	vectors, err := e.embeddingClient.GetEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: expected %d vectors, got %d", ErrEncoding, len(docs), len(vectors))
	}

	points := make([]repository.IndexedPoint, len(docs))
	for i, doc := range docs {
		points[i] = repository.NewIndexedPoint(doc, vectors[i])
	}
	return e.index.Upsert(ctx, e.cfg.Collection, points)
}

func (e *Engine) fail(logger *zap.Logger, res *Result, kind ErrorKind, err error) *Result {
	logger.Error("research failed", zap.String("kind", string(kind)), zap.Error(err))
	res.Status = StatusError
	res.Kind = kind
	res.Message = err.Error()
	res.Sources = []repository.ScoredDocument{}
	return res
}
