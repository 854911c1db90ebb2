package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	require.Equal(t, "hello", Truncate("hello", 10))
	require.Equal(t, "hel", Truncate("hello", 3))
	require.Equal(t, "", Truncate("hello", 0))

	long := strings.Repeat("é", 150)
	out := Truncate(long, PreviewLength)
	require.Equal(t, PreviewLength, utf8.RuneCountInString(out))
	require.True(t, utf8.ValidString(out))
}

func TestPreviewStripsMarkup(t *testing.T) {
	out := Preview("<b>hi</b>   there\n<script>alert(1)</script>", PreviewLength)
	require.Equal(t, "hi there", out)
}

func TestPreviewTruncates(t *testing.T) {
	out := Preview(strings.Repeat("a", 250), PreviewLength)
	require.Len(t, out, PreviewLength)
}
