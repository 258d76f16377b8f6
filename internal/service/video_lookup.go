package service

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"edupro/internal/model"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	// browserUserAgent keeps the search page from rejecting the request
	// outright.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	searchPath       = "/results"
	querySuffix      = " tutorial"
)

// videoIDPattern is tied to the current markup of the results page.
var videoIDPattern = regexp.MustCompile(`watch\?v=([A-Za-z0-9_-]{11})`)

// VideoLookup finds externally hosted tutorial videos for a free-text query.
type VideoLookup interface {
	// Search never fails hard: on any problem, or when nothing matches, it
	// returns an empty slice together with ErrLookupUnavailable.
	Search(ctx context.Context, query string, maxResults int) ([]model.VideoResult, error)
	// MoreResultsURL links to the full search page for a human.
	MoreResultsURL(query string) string
}

type videoLookup struct {
	client     *resty.Client
	baseURL    string
	maxResults int
	logger     zerolog.Logger
}

// NewVideoLookup creates a scraping VideoLookup against baseURL.
func NewVideoLookup(baseURL string, timeout time.Duration, maxResults int, logger zerolog.Logger) VideoLookup {
	baseURL = strings.TrimRight(baseURL, "/")
	if maxResults <= 0 {
		maxResults = 10
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	return &videoLookup{
		client:     client,
		baseURL:    baseURL,
		maxResults: maxResults,
		logger:     logger.With().Str("service", "VideoLookup").Logger(),
	}
}

func (l *videoLookup) Search(ctx context.Context, query string, maxResults int) ([]model.VideoResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.VideoResult{}, nil
	}
	if maxResults <= 0 {
		maxResults = l.maxResults
	}

	resp, err := l.client.R().
		SetContext(ctx).
		SetQueryParam("search_query", query+querySuffix).
		Get(searchPath)
	if err != nil {
		l.logger.Warn().Err(err).Str("query", query).Msg("Video lookup request failed")
		return []model.VideoResult{}, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	if !resp.IsSuccess() {
		l.logger.Warn().Int("status_code", resp.StatusCode()).Str("query", query).Msg("Video lookup returned error status")
		return []model.VideoResult{}, fmt.Errorf("%w: status %d", ErrLookupUnavailable, resp.StatusCode())
	}

	results := extractVideoResults(resp.String(), maxResults)
	if len(results) == 0 {
		l.logger.Debug().Str("query", query).Msg("Video lookup found no results")
		return results, ErrLookupUnavailable
	}
	return results, nil
}

func (l *videoLookup) MoreResultsURL(query string) string {
	return l.baseURL + searchPath + "?search_query=" + url.QueryEscape(strings.TrimSpace(query)+querySuffix)
}

// extractVideoResults pulls unique video ids out of a results page in order
// of appearance and labels them "Tutorial N".
func extractVideoResults(body string, maxResults int) []model.VideoResult {
	results := []model.VideoResult{}
	seen := make(map[string]bool)
	for _, match := range videoIDPattern.FindAllStringSubmatch(body, -1) {
		if len(results) >= maxResults {
			break
		}
		id := match[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		results = append(results, model.VideoResult{
			ID:    id,
			Title: fmt.Sprintf("Tutorial %d", len(results)+1),
		})
	}
	return results
}
