package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/feliks/curio/internal/domain"
)

// Social posts have no authenticated API available, so the only real strategy
// is deterministic URL decomposition. The user's own description is the
// fallback, replaced with a templated placeholder when it is too short or
// generic to be useful.
func (e *Extractor) socialStrategies() []strategy {
	return []strategy{
		{method: "url_parse", terminal: true, run: e.socialURLParse},
		{method: "user_description", terminal: true, run: e.socialDescriptionFallback},
	}
}

// socialURLParse extracts the author handle and post id from the link and
// produces templated text around the user's description.
func (e *Extractor) socialURLParse(_ context.Context, req Request) (string, domain.JSONMap, error) {
	handle, postID, err := decomposePostLink(req.SourceLink)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Social post by @%s (id %s)\n%s", handle, postID, req.SourceLink)
	if desc := usableDescription(req.UserDescription); desc != "" {
		sb.WriteString("\n")
		sb.WriteString(desc)
	}

	return sb.String(), domain.JSONMap{
		"author":  handle,
		"post_id": postID,
	}, nil
}

// socialDescriptionFallback uses the saved description, or a placeholder when
// the description carries no signal.
func (e *Extractor) socialDescriptionFallback(_ context.Context, req Request) (string, domain.JSONMap, error) {
	if desc := usableDescription(req.UserDescription); desc != "" {
		return desc + "\n" + req.SourceLink, domain.JSONMap{}, nil
	}
	return fmt.Sprintf("Saved social post\n%s", req.SourceLink), domain.JSONMap{}, nil
}

// genericDescriptions are throwaway descriptions users type that carry no
// searchable signal.
var genericDescriptions = map[string]struct{}{
	"post":    {},
	"tweet":   {},
	"thread":  {},
	"link":    {},
	"save":    {},
	"saved":   {},
	"later":   {},
	"读一下":     {},
	"todo":    {},
	"reminder": {},
}

const minDescriptionChars = 12

func usableDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	if len(desc) < minDescriptionChars {
		return ""
	}
	if _, generic := genericDescriptions[strings.ToLower(desc)]; generic {
		return ""
	}
	return desc
}

// decomposePostLink pulls the author handle and post id out of the common
// /{handle}/status/{id} and /@{handle}/post/{id} link shapes.
func decomposePostLink(link string) (handle, postID string, err error) {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("unparseable post link %q", link)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		switch seg {
		case "status", "statuses", "post", "posts", "p":
			if i > 0 && i+1 < len(segments) {
				return strings.TrimPrefix(segments[i-1], "@"), segments[i+1], nil
			}
		}
	}

	// Single-segment profile links still identify the author.
	if len(segments) >= 2 && segments[0] != "" && segments[1] != "" {
		return strings.TrimPrefix(segments[0], "@"), segments[len(segments)-1], nil
	}

	return "", "", fmt.Errorf("no post id in link %q", link)
}
