package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/feliks/curio/internal/domain"
	"github.com/feliks/curio/internal/logger"
	"github.com/feliks/curio/internal/repository"
)

// SearchConfig holds configuration for the search service.
type SearchConfig struct {
	MaxLimit     int
	ContextChars int
	ExcerptChars int
}

// SearchService answers semantic queries over a user's library and assembles
// retrieval context for chat.
type SearchService struct {
	contentRepo  *repository.ContentRepository
	vectors      VectorIndex
	embedding    EmbeddingProvider
	logger       *logger.Logger
	maxLimit     int
	contextChars int
	excerptChars int
}

// NewSearchService creates a new search service.
func NewSearchService(
	contentRepo *repository.ContentRepository,
	vectors VectorIndex,
	embedding EmbeddingProvider,
	log *logger.Logger,
	cfg *SearchConfig,
) *SearchService {
	if log == nil {
		log = logger.GetDefault()
	}
	maxLimit, contextChars, excerptChars := 50, 2000, 200
	if cfg != nil {
		if cfg.MaxLimit > 0 {
			maxLimit = cfg.MaxLimit
		}
		if cfg.ContextChars > 0 {
			contextChars = cfg.ContextChars
		}
		if cfg.ExcerptChars > 0 {
			excerptChars = cfg.ExcerptChars
		}
	}
	return &SearchService{
		contentRepo:  contentRepo,
		vectors:      vectors,
		embedding:    embedding,
		logger:       log,
		maxLimit:     maxLimit,
		contextChars: contextChars,
		excerptChars: excerptChars,
	}
}

// SearchRequest represents a semantic search request.
type SearchRequest struct {
	Query string  `json:"query" binding:"required"`
	Limit int     `json:"limit"`
	Kind  *string `json:"kind,omitempty"`
	Tag   *string `json:"tag,omitempty"`
}

// SearchResponse represents the search response.
type SearchResponse struct {
	Results []domain.ContentSearchResult `json:"results"`
	Total   int                          `json:"total"`
	Query   string                       `json:"query"`
}

// SemanticSearch embeds the query and retrieves the caller's nearest content
// items, resolved back through the database. Vector hits whose database
// record has vanished are dropped silently.
func (s *SearchService) SemanticSearch(ctx context.Context, userID string, req *SearchRequest) (*SearchResponse, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "required")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.NewValidationError("query", "required")
	}
	limit := req.Limit
	if limit == 0 {
		limit = 10
	}
	if limit < 1 || limit > s.maxLimit {
		return nil, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", s.maxLimit))
	}
	if req.Kind != nil && !domain.ValidKind(domain.ContentKind(*req.Kind)) {
		return nil, domain.NewValidationError("kind", "unknown content kind")
	}

	queryVector, err := s.embedding.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	filters := &repository.SearchFilters{
		UserID: userID,
		Kind:   req.Kind,
		Tag:    req.Tag,
	}

	hits, err := s.vectors.Search(ctx, queryVector, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector index: %w", err)
	}

	results := s.resolve(ctx, userID, hits)

	logger.CtxInfo(ctx, "Semantic search: query=%q, hits=%d, resolved=%d",
		query, len(hits), len(results))

	return &SearchResponse{
		Results: results,
		Total:   len(results),
		Query:   query,
	}, nil
}

// resolve maps vector hits back to database records, keeping only items
// still owned by the caller and ordering by descending score.
func (s *SearchService) resolve(ctx context.Context, userID string, hits []repository.SearchResult) []domain.ContentSearchResult {
	if len(hits) == 0 {
		return []domain.ContentSearchResult{}
	}

	scores := make(map[string]float32, len(hits))
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Payload == nil || hit.Payload.ContentID == "" {
			continue
		}
		if _, seen := scores[hit.Payload.ContentID]; seen {
			continue
		}
		scores[hit.Payload.ContentID] = hit.Score
		ids = append(ids, hit.Payload.ContentID)
	}

	items, err := s.contentRepo.GetByIDs(ctx, ids)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to resolve search hits from database: error=%v", err)
		return []domain.ContentSearchResult{}
	}

	results := make([]domain.ContentSearchResult, 0, len(items))
	for i := range items {
		if items[i].UserID != userID {
			continue
		}
		results = append(results, domain.ContentSearchResult{
			ContentItem: items[i],
			Score:       scores[items[i].ID],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Source identifies one library item cited in an assembled chat context.
type Source struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Link    string  `json:"source_link"`
	Score   float32 `json:"score"`
	Excerpt string  `json:"excerpt"`
}

// ChatContext is the retrieval output handed to the chat model.
type ChatContext struct {
	Prompt  string   `json:"prompt"`
	Sources []Source `json:"sources"`
	Empty   bool     `json:"empty"`
}

// emptyContextMarker is emitted when no library content matches, so the chat
// model answers from the query alone instead of hallucinating sources.
const emptyContextMarker = "No saved content matched this question."

// BuildChatContext retrieves the top matches for a query and formats them
// into numbered source blocks, each clipped to the configured context size.
func (s *SearchService) BuildChatContext(ctx context.Context, userID, query string, maxSources int) (*ChatContext, error) {
	if maxSources <= 0 {
		maxSources = 5
	}
	if maxSources > s.maxLimit {
		maxSources = s.maxLimit
	}

	resp, err := s.SemanticSearch(ctx, userID, &SearchRequest{Query: query, Limit: maxSources})
	if err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		return &ChatContext{
			Prompt:  emptyContextMarker,
			Sources: []Source{},
			Empty:   true,
		}, nil
	}

	var b strings.Builder
	sources := make([]Source, 0, len(resp.Results))
	for i, r := range resp.Results {
		body := r.ExtractedText
		if body == "" {
			body = r.UserDescription
		}

		title := r.Title
		if title == "" {
			title = r.SourceLink
		}
		if title == "" {
			title = string(r.Kind)
		}

		fmt.Fprintf(&b, "[Source %d] %s (%s)\n", i+1, title, r.Kind)
		if r.SourceLink != "" {
			fmt.Fprintf(&b, "Link: %s\n", r.SourceLink)
		}
		if v := metaString(r.ExtractionMeta, "author"); v != "" {
			fmt.Fprintf(&b, "Author: %s\n", v)
		}
		if v := metaString(r.ExtractionMeta, "published"); v != "" {
			fmt.Fprintf(&b, "Published: %s\n", v)
		}
		if v := metaString(r.ExtractionMeta, "duration"); v != "" {
			fmt.Fprintf(&b, "Duration: %s\n", v)
		}
		fmt.Fprintf(&b, "%s\n\n", clip(body, s.contextChars))

		sources = append(sources, Source{
			ID:      r.ID,
			Title:   title,
			Link:    r.SourceLink,
			Score:   r.Score,
			Excerpt: clip(body, s.excerptChars),
		})
	}

	return &ChatContext{
		Prompt:  strings.TrimRight(b.String(), "\n"),
		Sources: sources,
	}, nil
}

// metaString reads a string-valued extraction metadata field.
func metaString(m domain.JSONMap, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
