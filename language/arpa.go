package language

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

// LoadARPA reads a language model in ARPA format.
// Log probabilities in ARPA files are base-10; they are converted to natural log.
func LoadARPA(r io.Reader) (*NGramModel, error) {
	scanner := bufio.NewScanner(r)
	model := NewNGramModel(1)

	// Skip until \data\ section
	found := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "\\data\\" {
			found = true
			break
		}
	}
	if !found {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("missing \\data\\ section")
	}

	order := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "ngram ") {
			continue
		}
		if line == "\\end\\" {
			break
		}

		if strings.HasPrefix(line, "\\") && strings.HasSuffix(line, "-grams:") {
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "\\"), "-grams:"))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad section header %q", line)
			}
			order = n
			model.grow(n)
			continue
		}

		if order == 0 {
			return nil, fmt.Errorf("n-gram line %q outside of a section", line)
		}
		if err := parseNGramLine(model, order, line); err != nil {
			return nil, fmt.Errorf("parse n-gram line %q: %w", line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return model, nil
}

// LoadARPAFile is a convenience wrapper that opens a file path.
func LoadARPAFile(path string) (*NGramModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadARPA(f)
}

func parseNGramLine(model *NGramModel, order int, line string) error {
	fields := strings.Fields(line)
	if len(fields) < order+1 {
		return fmt.Errorf("too few fields for %d-gram", order)
	}

	logProb, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("parse log prob: %w", err)
	}

	var logBackoff float64
	if len(fields) > order+1 {
		logBackoff, err = strconv.ParseFloat(fields[order+1], 64)
		if err != nil {
			return fmt.Errorf("parse backoff: %w", err)
		}
	}

	model.Add(fields[1:order+1], logProb*math.Ln10, logBackoff*math.Ln10)
	return nil
}

// WriteARPA writes the model in ARPA format with base-10 log probabilities.
// N-grams are sorted so the output is reproducible.
func (m *NGramModel) WriteARPA(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "\\data\\")
	for n := 1; n <= len(m.grams); n++ {
		fmt.Fprintf(bw, "ngram %d=%d\n", n, len(m.grams[n-1]))
	}

	for n := 1; n <= len(m.grams); n++ {
		fmt.Fprintf(bw, "\n\\%d-grams:\n", n)
		keys := make([]string, 0, len(m.grams[n-1]))
		for k := range m.grams[n-1] {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			e := m.grams[n-1][k]
			words := strings.ReplaceAll(k, "\x00", " ")
			if n < len(m.grams) && e.LogBackoff != 0 {
				fmt.Fprintf(bw, "%.6f\t%s\t%.6f\n", e.LogProb/math.Ln10, words, e.LogBackoff/math.Ln10)
			} else {
				fmt.Fprintf(bw, "%.6f\t%s\n", e.LogProb/math.Ln10, words)
			}
		}
	}
	fmt.Fprintln(bw, "\n\\end\\")
	return bw.Flush()
}
