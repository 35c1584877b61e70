package lexicon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Special lemma names understood by the search.
const (
	SpecialBlank       = "blank"
	SpecialSentenceEnd = "sentence-end"
	SpecialSilence     = "silence"
)

// ErrUnknownLemma is returned when a symbol is not part of the lexicon.
var ErrUnknownLemma = errors.New("unknown lemma")

// Pronunciation is the output payload of a lemma. Traceback items and
// lattice arcs refer to it; a nil pronunciation marks an epsilon step.
type Pronunciation struct {
	Lemma    *Lemma
	Phonemes []string
}

// Lemma is one output token. ID equals its position in the lexicon and is
// the label index used by the label scorer.
type Lemma struct {
	ID            int
	Symbol        string
	Special       string
	Pronunciation *Pronunciation
}

// IsSpecial reports whether the lemma is a non-word token such as blank.
func (l *Lemma) IsSpecial() bool {
	return l.Special != ""
}

// Lexicon is an ordered set of lemmas. Iteration order is insertion order
// and never changes, so decoding over it is reproducible.
type Lexicon struct {
	lemmas   []*Lemma
	bySymbol map[string]*Lemma
	special  map[string]*Lemma
}

// New creates an empty lexicon.
func New() *Lexicon {
	return &Lexicon{
		bySymbol: make(map[string]*Lemma),
		special:  make(map[string]*Lemma),
	}
}

// Add appends a regular lemma with the given phonemes and returns it.
// Adding an existing symbol returns the existing lemma unchanged.
func (lx *Lexicon) Add(symbol string, phonemes ...string) *Lemma {
	if l, ok := lx.bySymbol[symbol]; ok {
		return l
	}
	l := &Lemma{ID: len(lx.lemmas), Symbol: symbol}
	l.Pronunciation = &Pronunciation{Lemma: l, Phonemes: phonemes}
	lx.insert(l)
	return l
}

// AddSpecial appends a special lemma. Special lemmas carry no
// pronunciation and produce epsilon traceback entries.
func (lx *Lexicon) AddSpecial(symbol, special string) *Lemma {
	if l, ok := lx.bySymbol[symbol]; ok {
		return l
	}
	l := &Lemma{ID: len(lx.lemmas), Symbol: symbol, Special: special}
	lx.insert(l)
	lx.special[special] = l
	return l
}

func (lx *Lexicon) insert(l *Lemma) {
	lx.lemmas = append(lx.lemmas, l)
	lx.bySymbol[l.Symbol] = l
}

// Len returns the number of lemmas.
func (lx *Lexicon) Len() int {
	return len(lx.lemmas)
}

// Lemmas returns all lemmas in label index order.
func (lx *Lexicon) Lemmas() []*Lemma {
	return lx.lemmas
}

// Lemma returns the lemma with the given id, or nil.
func (lx *Lexicon) Lemma(id int) *Lemma {
	if id < 0 || id >= len(lx.lemmas) {
		return nil
	}
	return lx.lemmas[id]
}

// SpecialLemma returns the special lemma registered under name, or nil.
func (lx *Lexicon) SpecialLemma(name string) *Lemma {
	return lx.special[name]
}

// Lookup returns the lemma for a symbol.
func (lx *Lexicon) Lookup(symbol string) (*Lemma, error) {
	l, ok := lx.bySymbol[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLemma, symbol)
	}
	return l, nil
}

// Symbols maps a sequence of lemma ids back to their symbols.
func (lx *Lexicon) Symbols(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if l := lx.Lemma(id); l != nil {
			out = append(out, l.Symbol)
		}
	}
	return out
}

// Load reads a lexicon from a tab-separated file.
// Format: symbol[<TAB>special[<TAB>phoneme1 phoneme2 ...]]
// An empty or "-" special field marks a regular lemma.
func Load(r io.Reader) (*Lexicon, error) {
	lx := New()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		symbol := strings.TrimSpace(parts[0])
		if symbol == "" {
			return nil, fmt.Errorf("line %d: empty symbol", lineNum)
		}
		if _, dup := lx.bySymbol[symbol]; dup {
			return nil, fmt.Errorf("line %d: duplicate symbol %q", lineNum, symbol)
		}

		special := ""
		if len(parts) > 1 {
			special = strings.TrimSpace(parts[1])
			if special == "-" {
				special = ""
			}
		}
		var phonemes []string
		if len(parts) > 2 {
			phonemes = strings.Fields(parts[2])
		}

		if special != "" {
			if len(phonemes) > 0 {
				return nil, fmt.Errorf("line %d: special lemma %q cannot have phonemes", lineNum, symbol)
			}
			lx.AddSpecial(symbol, special)
			continue
		}
		lx.Add(symbol, phonemes...)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lx, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
