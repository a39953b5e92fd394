package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"deskresearch/repository"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultArxivURL        = "http://export.arxiv.org/api/query"
	DefaultContentMaxChars = 800
	DefaultMaxResults      = 15
	SourceArxiv            = "arXiv"
)

type SortBy string

const (
	SortByRelevance   SortBy = "relevance"
	SortBySubmitted   SortBy = "submittedDate"
	SortByLastUpdated SortBy = "lastUpdatedDate"
)

type ArxivConfig struct {
	BaseURL         string
	SortBy          SortBy
	RecencyAware    bool
	ContentMaxChars int
	Timeout         time.Duration
	FillerWords     []string
	// RequestsPerSecond throttles calls across all runs. Zero disables it.
	RequestsPerSecond float64
}

type ArxivSearchEngine struct {
	client          *http.Client
	baseURL         string
	sortBy          SortBy
	recencyAware    bool
	contentMaxChars int
	cleaner         *QueryCleaner
	limiter         *rate.Limiter
	logger          *zap.Logger
}

func NewArxivSearchEngine(cfg ArxivConfig, logger *zap.Logger) *ArxivSearchEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultArxivURL
	}
	if cfg.SortBy == "" {
		cfg.SortBy = SortByRelevance
	}
	if cfg.ContentMaxChars <= 0 {
		cfg.ContentMaxChars = DefaultContentMaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FillerWords == nil {
		cfg.FillerWords = DefaultFillerWords
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &ArxivSearchEngine{
		client:          &http.Client{Timeout: cfg.Timeout},
		baseURL:         cfg.BaseURL,
		sortBy:          cfg.SortBy,
		recencyAware:    cfg.RecencyAware,
		contentMaxChars: cfg.ContentMaxChars,
		cleaner:         NewQueryCleaner(cfg.FillerWords),
		limiter:         rate.NewLimiter(limit, 1),
		logger:          logger,
	}
}

func (s *ArxivSearchEngine) Search(ctx context.Context, req *SearchRequest) ([]repository.Document, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	q := s.cleaner.Clean(req.Query)
	params := url.Values{}
	params.Set("search_query", fmt.Sprintf("ti:%s OR abs:%s", q, q))
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(maxResults))
	params.Set("sortBy", string(s.sortBy))
	params.Set("sortOrder", "descending")

	if err := s.limiter.Wait(ctx); err != nil {
		return []repository.Document{}, &FetchError{Kind: FetchTransport, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return []repository.Document{}, &FetchError{Kind: FetchTransport, Err: err}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Warn("arxiv request failed", zap.String("query", q), zap.Error(err))
		return []repository.Document{}, &FetchError{Kind: FetchTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		s.logger.Warn("arxiv returned non-success status",
			zap.String("query", q),
			zap.Int("status_code", resp.StatusCode))
		return []repository.Document{}, &FetchError{Kind: FetchStatus, StatusCode: resp.StatusCode}
	}

	docs, err := s.parseFeed(resp.Body)
	if err != nil {
		s.logger.Warn("arxiv feed could not be parsed", zap.String("query", q), zap.Error(err))
		return []repository.Document{}, &FetchError{Kind: FetchDecode, Err: err}
	}

	if s.recencyAware {
		repository.SortByRecency(docs, func(d repository.Document) string { return d.PublishedDate })
	}

	s.logger.Info("arxiv search completed",
		zap.String("query", q),
		zap.Int("documents", len(docs)))
	return docs, nil
}

// parseFeed extracts one document per Atom entry. Entries missing a required
// field are skipped so one malformed entry never fails the batch.
func (s *ArxivSearchEngine) parseFeed(r io.Reader) ([]repository.Document, error) {
	feed, err := xmlquery.Parse(r)
	if err != nil {
		return nil, err
	}

	entries := xmlquery.Find(feed, "//entry")
	docs := make([]repository.Document, 0, len(entries))
	for i, entry := range entries {
		doc, ok := s.parseEntry(entry)
		if !ok {
			s.logger.Debug("skipping incomplete arxiv entry", zap.Int("entry", i))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *ArxivSearchEngine) parseEntry(entry *xmlquery.Node) (repository.Document, bool) {
	title := normalizeSpace(childText(entry, "title"))
	summary := normalizeSpace(childText(entry, "summary"))
	link := strings.TrimSpace(childText(entry, "id"))
	if title == "" || summary == "" || link == "" {
		return repository.Document{}, false
	}

	return repository.Document{
		Title:         title,
		Content:       truncateRunes(summary, s.contentMaxChars),
		URL:           link,
		Source:        SourceArxiv,
		PublishedDate: NormalizeDate(childText(entry, "published")),
	}, true
}

func childText(n *xmlquery.Node, name string) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name && c.Prefix == "" {
			return c.InnerText()
		}
	}
	return ""
}

// NormalizeDate returns the date part of a feed timestamp as YYYY-MM-DD, or
// repository.UnknownDate when it cannot be read.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return repository.UnknownDate
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(time.DateOnly)
	}
	if len(raw) >= 10 {
		if t, err := time.Parse(time.DateOnly, raw[:10]); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return repository.UnknownDate
}
