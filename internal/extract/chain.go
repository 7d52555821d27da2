// Package extract turns a saved reference into text. Each content kind has an
// ordered list of strategies; the chain accepts the first result that clears
// the quality bar and otherwise falls through to cheaper and cheaper
// fallbacks.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/storage"
	"github.com/go-resty/resty/v2"
)

// MetaMethod is the metadata key recording which strategy produced the text.
// Downstream consumers use it to distinguish a full extraction from a
// degraded fallback.
const MetaMethod = "extraction_method"

// MetaSnapshotKey is the metadata key holding the object-storage key of the
// archived page, when one was taken.
const MetaSnapshotKey = "snapshot_key"

// Request is the input to the strategy chain for one content item.
type Request struct {
	Kind            domain.ContentKind
	SourceLink      string
	UserDescription string
}

// Result is a successful extraction.
type Result struct {
	Text     string
	Metadata domain.JSONMap
}

// Config holds the tunables of the extraction chain.
type Config struct {
	// MinTextChars is the quality bar: a non-terminal strategy result shorter
	// than this falls through to the next strategy.
	MinTextChars int

	// MaxTextChars bounds text length across all strategies.
	MaxTextChars int

	CaptionBaseURL     string
	CaptionLangs       []string
	CaptionMinInterval time.Duration

	MetadataBaseURL string
	MetadataAPIKey  string

	CrawlerBaseURL string
	CrawlerAPIKey  string

	HTTPTimeout time.Duration
}

const (
	defaultMinTextChars = 50
	defaultMaxTextChars = 8000
	defaultHTTPTimeout  = 20 * time.Second
)

// Extractor runs the per-kind strategy chains.
type Extractor struct {
	cfg     Config
	client  *resty.Client
	limiter *Limiter
	snaps   storage.SnapshotStore
	logger  *logger.Logger
}

// New creates an Extractor. snaps may be nil, in which case article page
// snapshots are disabled.
func New(cfg *Config, snaps storage.SnapshotStore, log *logger.Logger) *Extractor {
	c := *cfg
	if c.MinTextChars <= 0 {
		c.MinTextChars = defaultMinTextChars
	}
	if c.MaxTextChars <= 0 {
		c.MaxTextChars = defaultMaxTextChars
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if len(c.CaptionLangs) == 0 {
		c.CaptionLangs = []string{"en"}
	}
	if log == nil {
		log = logger.GetDefault()
	}

	client := resty.New()
	client.SetTimeout(c.HTTPTimeout)

	return &Extractor{
		cfg:     c,
		client:  client,
		limiter: NewLimiter(c.CaptionMinInterval),
		snaps:   snaps,
		logger:  log,
	}
}

// strategy is a single extraction attempt. Terminal strategies are
// deterministic fallbacks: their output is accepted regardless of the quality
// bar, and they are skipped when an earlier transient failure should be
// retried instead.
type strategy struct {
	method   string
	terminal bool
	run      func(ctx context.Context, req Request) (string, domain.JSONMap, error)
}

// Extract produces text and metadata for the request, or an error classified
// as transient (retryable) or permanent.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	var strategies []strategy

	switch req.Kind {
	case domain.KindVideo:
		strategies = e.videoStrategies()
	case domain.KindArticle:
		strategies = e.articleStrategies()
	case domain.KindSocial:
		strategies = e.socialStrategies()
	case domain.KindNote:
		// Notes never enter the chain; they complete at creation.
		return nil, domain.ErrInvalidKind
	default:
		return nil, domain.NewPermanentError(fmt.Errorf("unsupported content kind %q", req.Kind))
	}

	return e.runChain(ctx, req, strategies)
}

func (e *Extractor) runChain(ctx context.Context, req Request, strategies []strategy) (*Result, error) {
	var transientErr error

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewTransientError(err)
		}

		// A transient failure upstream (rate limit, timeout) means a retry
		// will likely produce a better result than the deterministic
		// fallback would; propagate it instead of degrading.
		if s.terminal && transientErr != nil {
			break
		}

		text, meta, err := s.run(ctx, req)
		if err != nil {
			if domain.IsTransient(err) {
				transientErr = err
			}
			e.logger.WithFields(logger.Fields{
				"method": s.method,
				"kind":   string(req.Kind),
			}).WithError(err).Debug("extraction strategy failed")
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if !s.terminal && len(text) < e.cfg.MinTextChars {
			continue
		}

		if meta == nil {
			meta = domain.JSONMap{}
		}
		meta[MetaMethod] = s.method
		meta["word_count"] = len(strings.Fields(text))

		return &Result{
			Text:     truncate(text, e.cfg.MaxTextChars),
			Metadata: meta,
		}, nil
	}

	if transientErr != nil {
		return nil, transientErr
	}
	return nil, domain.NewPermanentError(fmt.Errorf("all extraction strategies exhausted for %q", req.SourceLink))
}

// truncate bounds s to max bytes on a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	out := make([]rune, 0, max)
	size := 0
	for _, r := range runes {
		size += len(string(r))
		if size > max {
			break
		}
		out = append(out, r)
	}
	return string(out)
}
