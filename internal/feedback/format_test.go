package feedback_test

import (
	"go/format"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourcesAreGofmtClean(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		src, err := os.ReadFile(f)
		require.NoError(t, err)
		formatted, err := format.Source(src)
		require.NoError(t, err, f)
		require.Equal(t, string(formatted), string(src), "%s is not gofmt-clean", f)
	}
}
