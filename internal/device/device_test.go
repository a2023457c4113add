package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelNamesBrowser(t *testing.T) {
	got := Label("Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0")
	require.Contains(t, got, "Firefox")
	require.NotEqual(t, "Unknown device", got)
}

func TestLabelFallbacks(t *testing.T) {
	require.Equal(t, "Unknown device", Label(""))
	require.Equal(t, "Unknown device", Label("   "))
}

func TestLabelTruncates(t *testing.T) {
	// A pathological UA must not produce an unbounded label.
	ua := "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	got := Label(ua)
	require.LessOrEqual(t, len(got), maxLabelLength)
	require.NotEmpty(t, got)
}
