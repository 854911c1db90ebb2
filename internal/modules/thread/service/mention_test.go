package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMentions(t *testing.T) {
	cases := []struct {
		content string
		want    []string
	}{
		{"no mentions here", nil},
		{"@alice at start", []string{"alice"}},
		{"hi @Alice and @alice again", []string{"alice"}},
		{"mail me at bob@example.com", nil},
		{"@@double and @ab too short", nil},
		{"(@carol_1), @dave!", []string{"carol_1", "dave"}},
	}

	for _, tc := range cases {
		t.Run(tc.content, func(t *testing.T) {
			got := ParseMentions(tc.content)
			if tc.want == nil {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseMentionsCapsResults(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "@user%02d ", i)
	}
	require.Len(t, ParseMentions(b.String()), 10)
}
