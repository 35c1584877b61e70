// Package scorefile reads label score matrices in a plain text format: one
// frame per line, one whitespace-separated score per label. Lines starting
// with '#' and empty lines are skipped.
package scorefile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rwth-i6/rasr-sub008/internal/mathutil"
)

// Stream parses frames from r and sends them to out. It stops early when
// ctx is done. out is not closed.
func Stream(ctx context.Context, r io.Reader, out chan<- []float64) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	dim := -1

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if dim < 0 {
			dim = len(fields)
		} else if len(fields) != dim {
			return fmt.Errorf("line %d: %d scores, expected %d", lineNum, len(fields), dim)
		}
		frame := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return fmt.Errorf("line %d: parse score: %w", lineNum, err)
			}
			frame[i] = v
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// Read parses all frames of r into a matrix with one row per frame. The rows
// share a single backing array.
func Read(r io.Reader) (mathutil.Mat, error) {
	out := make(chan []float64)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- Stream(context.Background(), r, out)
	}()
	var frames [][]float64
	for f := range out {
		frames = append(frames, f)
	}
	if err := <-errc; err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, nil
	}
	m := mathutil.NewMat(len(frames), len(frames[0]))
	for i, f := range frames {
		copy(m[i], f)
	}
	return m, nil
}

// ReadFile is a convenience wrapper that opens a file path.
func ReadFile(path string) (mathutil.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
