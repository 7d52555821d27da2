package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/feliks/curio/internal/domain"
)

// Video strategies, in order:
//  1. transcript in each preferred language
//  2. auto-generated captions, no language filter
//  3. scrape the watch page for title/description
//  4. metadata API, synthesizing text from title/channel/description
//  5. minimal fallback with just the id and link
func (e *Extractor) videoStrategies() []strategy {
	return []strategy{
		{method: "captions", run: e.captionsPreferred},
		{method: "captions_auto", run: e.captionsAuto},
		{method: "page_scrape", run: e.videoPageScrape},
		{method: "metadata_api", run: e.videoMetadataAPI},
		{method: "link_only", terminal: true, run: e.videoFallback},
	}
}

type transcriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
}

type transcriptResponse struct {
	Transcript []transcriptSegment `json:"transcript"`
	Language   string              `json:"language"`
	Error      string              `json:"error,omitempty"`
}

// captionsPreferred tries the transcript provider in each preferred language
// code in order. A rate-limit response short-circuits the remaining language
// attempts for this tier.
func (e *Extractor) captionsPreferred(ctx context.Context, req Request) (string, domain.JSONMap, error) {
	id, err := videoID(req.SourceLink)
	if err != nil {
		return "", nil, domain.NewPermanentError(err)
	}

	var lastErr error
	for _, lang := range e.cfg.CaptionLangs {
		text, meta, err := e.fetchTranscript(ctx, id, lang)
		if err != nil {
			if domain.IsTransient(err) {
				// No point burning the remaining language attempts against a
				// rate limiter that just rejected us.
				return "", nil, err
			}
			lastErr = err
			continue
		}
		if text != "" {
			return text, meta, nil
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no transcript in preferred languages for video %s", id)
	}
	return "", nil, lastErr
}

// captionsAuto asks the provider for whatever caption track exists, typically
// the auto-generated one.
func (e *Extractor) captionsAuto(ctx context.Context, req Request) (string, domain.JSONMap, error) {
	id, err := videoID(req.SourceLink)
	if err != nil {
		return "", nil, domain.NewPermanentError(err)
	}
	return e.fetchTranscript(ctx, id, "")
}

func (e *Extractor) fetchTranscript(ctx context.Context, videoID, lang string) (string, domain.JSONMap, error) {
	if e.cfg.CaptionBaseURL == "" {
		return "", nil, fmt.Errorf("caption provider not configured")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return "", nil, domain.NewTransientError(err)
	}

	r := e.client.R().
		SetContext(ctx).
		SetQueryParam("video_id", videoID)
	if lang != "" {
		r.SetQueryParam("lang", lang)
	}

	var body transcriptResponse
	// Some transcript deployments serve JSON with a text/plain content type.
	resp, err := r.SetResult(&body).
		ForceContentType("application/json").
		Get(e.cfg.CaptionBaseURL + "/transcript")
	if err != nil {
		return "", nil, domain.NewTransientError(fmt.Errorf("caption provider call failed: %w", err))
	}

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return "", nil, domain.NewTransientError(fmt.Errorf("caption provider rate limited"))
	case resp.StatusCode() >= 500:
		return "", nil, domain.NewTransientError(fmt.Errorf("caption provider returned status %d", resp.StatusCode()))
	case resp.StatusCode() != http.StatusOK:
		return "", nil, fmt.Errorf("caption provider returned status %d", resp.StatusCode())
	}

	if body.Error != "" {
		return "", nil, fmt.Errorf("caption provider error: %s", body.Error)
	}

	parts := make([]string, 0, len(body.Transcript))
	for _, seg := range body.Transcript {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	text := strings.Join(parts, " ")

	meta := domain.JSONMap{"video_id": videoID}
	if body.Language != "" {
		meta["caption_language"] = body.Language
	} else if lang != "" {
		meta["caption_language"] = lang
	}
	return text, meta, nil
}

// videoPageScrape fetches the canonical watch page and pulls the embedded
// title and description metadata out of it.
func (e *Extractor) videoPageScrape(ctx context.Context, req Request) (string, domain.JSONMap, error) {
	raw, err := e.fetchHTML(ctx, req.SourceLink, browserHeaders())
	if err != nil {
		return "", nil, err
	}

	page := parsePage(raw)

	var parts []string
	if page.Title != "" {
		parts = append(parts, page.Title)
	}
	if page.Description != "" {
		parts = append(parts, page.Description)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("no usable metadata on watch page")
	}

	meta := domain.JSONMap{}
	if page.Title != "" {
		meta["title"] = page.Title
	}
	return strings.Join(parts, "\n"), meta, nil
}

type videoMetadataResponse struct {
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Error       string `json:"error,omitempty"`
}

// videoMetadataAPI calls the optional metadata API and synthesizes text from
// the returned title, channel and description.
func (e *Extractor) videoMetadataAPI(ctx context.Context, req Request) (string, domain.JSONMap, error) {
	if e.cfg.MetadataBaseURL == "" || e.cfg.MetadataAPIKey == "" {
		return "", nil, fmt.Errorf("metadata API not configured")
	}

	id, err := videoID(req.SourceLink)
	if err != nil {
		return "", nil, domain.NewPermanentError(err)
	}

	var body videoMetadataResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParam("id", id).
		SetQueryParam("key", e.cfg.MetadataAPIKey).
		SetResult(&body).
		ForceContentType("application/json").
		Get(e.cfg.MetadataBaseURL + "/videos")
	if err != nil {
		return "", nil, domain.NewTransientError(fmt.Errorf("metadata API call failed: %w", err))
	}
	if resp.StatusCode() != http.StatusOK {
		return "", nil, fmt.Errorf("metadata API returned status %d", resp.StatusCode())
	}
	if body.Error != "" {
		return "", nil, fmt.Errorf("metadata API error: %s", body.Error)
	}

	var parts []string
	if body.Title != "" {
		parts = append(parts, body.Title)
	}
	if body.Channel != "" {
		parts = append(parts, "Channel: "+body.Channel)
	}
	if body.Description != "" {
		parts = append(parts, body.Description)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("metadata API returned no usable fields")
	}

	meta := domain.JSONMap{"video_id": id}
	if body.Title != "" {
		meta["title"] = body.Title
	}
	if body.Channel != "" {
		meta["author"] = body.Channel
	}
	if body.Duration != "" {
		meta["duration"] = body.Duration
	}
	return strings.Join(parts, "\n"), meta, nil
}

// videoFallback produces the deterministic minimal text: id and link only.
func (e *Extractor) videoFallback(_ context.Context, req Request) (string, domain.JSONMap, error) {
	id, err := videoID(req.SourceLink)
	if err != nil {
		id = "unknown"
	}
	text := fmt.Sprintf("Video %s\n%s", id, req.SourceLink)
	if desc := strings.TrimSpace(req.UserDescription); desc != "" {
		text += "\n" + desc
	}
	return text, domain.JSONMap{"video_id": id}, nil
}

// videoID extracts the external video id from the common link shapes:
// watch?v=ID, youtu.be/ID, shorts/ID and embed/ID.
func videoID(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("malformed video link %q: %w", link, err)
	}

	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 1 && segments[0] != "" && strings.Contains(u.Host, "youtu.be") {
		return segments[0], nil
	}
	for i, seg := range segments {
		if (seg == "shorts" || seg == "embed" || seg == "v") && i+1 < len(segments) {
			return segments[i+1], nil
		}
	}

	return "", fmt.Errorf("no video id in link %q", link)
}
