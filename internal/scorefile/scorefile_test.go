package scorefile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	in := `# blank A B
0.1 1 2

1e-3	-0.5 3
`
	frames, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 1, 2}, {0.001, -0.5, 3}}, frames)
}

func TestReadErrors(t *testing.T) {
	tests := map[string]string{
		"ragged": "1 2 3\n1 2\n",
		"number": "1 2 3\n1 x 3\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(in))
			assert.ErrorContains(t, err, "line 2")
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.txt")
	require.NoError(t, os.WriteFile(path, []byte("1 2\n3 4\n"), 0o644))
	frames, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, frames, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestStreamStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Stream(ctx, strings.NewReader("1 2\n"), make(chan []float64))
	assert.ErrorIs(t, err, context.Canceled)
}
