package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/logger"
)

// Article strategies, in order:
//  1. HTTP fetch with a realistic browser header set
//  2. HTTP fetch with a minimal header set, for servers that reject the first
//  3. third-party crawling/rendering service, if configured
//  4. fallback built from the URL's domain and path segments
//  5. final templated failure text
//
// The HTTP strategies always terminate in one of the two trailing fallbacks,
// so an unreachable article link settles in completed status rather than
// burning retries.
func (e *Extractor) articleStrategies() []strategy {
	return []strategy{
		{method: "http_browser", run: e.articleFetchBrowser},
		{method: "http_minimal", run: e.articleFetchMinimal},
		{method: "crawler", run: e.articleCrawler},
		{method: "url_fallback", terminal: true, run: e.articleURLFallback},
		{method: "unavailable", terminal: true, run: e.articleUnavailable},
	}
}

func browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
	}
}

func minimalHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "curio/1.0",
		"Accept":     "text/html",
	}
}

// fetchHTML performs a GET and returns the raw body. Errors are strategy
// failures, not transient: a dead article link does not heal on retry.
func (e *Extractor) fetchHTML(ctx context.Context, link string, headers map[string]string) (string, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(link)
	if err != nil {
		return "", fmt.Errorf("fetch failed for %q: %w", link, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("fetch of %q returned status %d", link, resp.StatusCode())
	}
	return string(resp.Body()), nil
}

func (e *Extractor) articleFetchBrowser(ctx context.Context, req Request) (string, domain.JSONMap, error) {
	return e.articleFetch(ctx, req, browserHeaders())
}

func (e *Extractor) articleFetchMinimal(ctx context.Context, req Request) (string, domain.JSONMap, error) {
	return e.articleFetch(ctx, req, minimalHeaders())
}

func (e *Extractor) articleFetch(ctx context.Context, req Request, headers map[string]string) (string, domain.JSONMap, error) {
	raw, err := e.fetchHTML(ctx, req.SourceLink, headers)
	if err != nil {
		return "", nil, err
	}

	snapKey := e.snapshotPage(ctx, req.SourceLink, raw)

	page := parsePage(raw)

	var sb strings.Builder
	if page.Title != "" {
		sb.WriteString(page.Title)
		sb.WriteString("\n")
	}
	sb.WriteString(page.Body)

	meta := domain.JSONMap{}
	if page.Title != "" {
		meta["title"] = page.Title
	}
	if snapKey != "" {
		meta[MetaSnapshotKey] = snapKey
	}
	return sb.String(), meta, nil
}

type crawlerRequest struct {
	URL string `json:"url"`
}

type crawlerResponse struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	HTML  string `json:"html"`
	Error string `json:"error,omitempty"`
}

// articleCrawler asks a rendering service to fetch the page, for sites that
// require JavaScript or block plain HTTP clients.
func (e *Extractor) articleCrawler(ctx context.Context, req Request) (string, domain.JSONMap, error) {
	if e.cfg.CrawlerBaseURL == "" {
		return "", nil, fmt.Errorf("crawler service not configured")
	}

	var body crawlerResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+e.cfg.CrawlerAPIKey).
		SetBody(crawlerRequest{URL: req.SourceLink}).
		SetResult(&body).
		ForceContentType("application/json").
		Post(e.cfg.CrawlerBaseURL + "/render")
	if err != nil {
		return "", nil, domain.NewTransientError(fmt.Errorf("crawler service call failed: %w", err))
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return "", nil, domain.NewTransientError(fmt.Errorf("crawler service rate limited"))
	}
	if resp.StatusCode() != http.StatusOK {
		return "", nil, fmt.Errorf("crawler service returned status %d", resp.StatusCode())
	}
	if body.Error != "" {
		return "", nil, fmt.Errorf("crawler service error: %s", body.Error)
	}

	text := body.Text
	title := body.Title
	if text == "" && body.HTML != "" {
		page := parsePage(body.HTML)
		text = page.Body
		if title == "" {
			title = page.Title
		}
	}

	meta := domain.JSONMap{}
	if title != "" {
		meta["title"] = title
		text = title + "\n" + text
	}
	return text, meta, nil
}

// articleURLFallback builds deterministic text from the URL's domain and path
// segments. Always available as long as the link parses.
func (e *Extractor) articleURLFallback(_ context.Context, req Request) (string, domain.JSONMap, error) {
	u, err := url.Parse(req.SourceLink)
	if err != nil || u.Host == "" {
		return "", nil, fmt.Errorf("unparseable article link %q", req.SourceLink)
	}

	var parts []string
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		seg = strings.NewReplacer("-", " ", "_", " ").Replace(seg)
		if seg = strings.TrimSpace(seg); seg != "" {
			parts = append(parts, seg)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Article from %s", u.Host)
	if len(parts) > 0 {
		fmt.Fprintf(&sb, ": %s", strings.Join(parts, " / "))
	}
	sb.WriteString("\n")
	sb.WriteString(req.SourceLink)
	if desc := strings.TrimSpace(req.UserDescription); desc != "" {
		sb.WriteString("\n")
		sb.WriteString(desc)
	}

	return sb.String(), domain.JSONMap{"domain": u.Host}, nil
}

// articleUnavailable is the last resort when even the link is unusable.
func (e *Extractor) articleUnavailable(_ context.Context, req Request) (string, domain.JSONMap, error) {
	text := fmt.Sprintf("Content unavailable for %s", req.SourceLink)
	if desc := strings.TrimSpace(req.UserDescription); desc != "" {
		text += "\n" + desc
	}
	return text, domain.JSONMap{}, nil
}

// snapshotPage archives the raw fetched HTML for "view original" support and
// returns the storage key, or "" when nothing was archived. Best-effort:
// failures are logged and never affect extraction.
func (e *Extractor) snapshotPage(ctx context.Context, link, raw string) string {
	if e.snaps == nil {
		return ""
	}
	key := snapshotKey(link)
	if err := e.snaps.Put(ctx, key, []byte(raw), "text/html"); err != nil {
		e.logger.WithFields(logger.Fields{"key": key}).WithError(err).Warn("failed to store page snapshot")
		return ""
	}
	return key
}

func snapshotKey(link string) string {
	s := strings.NewReplacer("://", "/", "?", "_", "&", "_", "=", "_").Replace(link)
	return "pages/" + strings.Trim(s, "/")
}
