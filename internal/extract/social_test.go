package extract

import (
	"context"
	"testing"

	"github.com/feliks/curio/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecomposePostLink(t *testing.T) {
	cases := []struct {
		name   string
		link   string
		handle string
		postID string
		ok     bool
	}{
		{
			name:   "status link",
			link:   "https://x.com/gopher/status/1234567890",
			handle: "gopher",
			postID: "1234567890",
			ok:     true,
		},
		{
			name:   "statuses link",
			link:   "https://twitter.com/gopher/statuses/42",
			handle: "gopher",
			postID: "42",
			ok:     true,
		},
		{
			name:   "at-handle post link",
			link:   "https://social.example/@gopher/post/abc",
			handle: "gopher",
			postID: "abc",
			ok:     true,
		},
		{
			name:   "short p link",
			link:   "https://pics.example/gopher/p/xyz123",
			handle: "gopher",
			postID: "xyz123",
			ok:     true,
		},
		{
			name:   "two segment link",
			link:   "https://social.example/gopher/12345",
			handle: "gopher",
			postID: "12345",
			ok:     true,
		},
		{
			name: "bare profile",
			link: "https://x.com/gopher",
			ok:   false,
		},
		{
			name: "no host",
			link: "not a link",
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handle, postID, err := decomposePostLink(tc.link)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.handle, handle)
			assert.Equal(t, tc.postID, postID)
		})
	}
}

func TestUsableDescription(t *testing.T) {
	assert.Equal(t, "", usableDescription("  "))
	assert.Equal(t, "", usableDescription("tweet"))
	assert.Equal(t, "", usableDescription("short"))
	assert.Equal(t, "a thought about Go scheduling", usableDescription(" a thought about Go scheduling "))
}

func TestSocialExtraction(t *testing.T) {
	e := New(&Config{MinTextChars: 10}, nil, nil)

	res, err := e.Extract(context.Background(), Request{
		Kind:            domain.KindSocial,
		SourceLink:      "https://x.com/gopher/status/99",
		UserDescription: "great thread on generics",
	})
	require.NoError(t, err)

	assert.Contains(t, res.Text, "Social post by @gopher (id 99)")
	assert.Contains(t, res.Text, "great thread on generics")
	assert.Equal(t, "url_parse", res.Metadata[MetaMethod])
	assert.Equal(t, "gopher", res.Metadata["author"])
	assert.Equal(t, "99", res.Metadata["post_id"])
}

func TestSocialExtractionFallsBackToDescription(t *testing.T) {
	e := New(&Config{MinTextChars: 10}, nil, nil)

	res, err := e.Extract(context.Background(), Request{
		Kind:            domain.KindSocial,
		SourceLink:      "https://x.com/gopher",
		UserDescription: "a long enough description of the post",
	})
	require.NoError(t, err)

	assert.Equal(t, "user_description", res.Metadata[MetaMethod])
	assert.Contains(t, res.Text, "a long enough description of the post")
}
