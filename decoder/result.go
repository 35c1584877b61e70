package decoder

import (
	"strings"

	"github.com/rwth-i6/rasr-sub008/trace"
)

// Result holds the recognition output.
type Result struct {
	Text  string  // recognized words joined by spaces
	Words []Word  // word-level details
	Score float64 // total cost of the traceback
}

// Word holds per-word timing and score information.
type Word struct {
	Text       string
	Phonemes   []string
	StartFrame int
	EndFrame   int
	Score      float64 // cost since the previous traceback item
}

// NewResult collects the words of a traceback. Epsilon and special items
// contribute to the score but produce no word.
func NewResult(tb trace.Traceback) Result {
	var r Result
	if len(tb) == 0 {
		return r
	}
	r.Score = tb[len(tb)-1].Score.Total()

	words := make([]string, 0, len(tb))
	for i := 1; i < len(tb); i++ {
		l := tb[i].Lemma()
		if l == nil || l.IsSpecial() {
			continue
		}
		prev := tb[i-1]
		r.Words = append(r.Words, Word{
			Text:       l.Symbol,
			Phonemes:   tb[i].Pronunciation.Phonemes,
			StartFrame: prev.Time,
			EndFrame:   tb[i].Time,
			Score:      tb[i].Score.Total() - prev.Score.Total(),
		})
		words = append(words, l.Symbol)
	}
	r.Text = strings.Join(words, " ")
	return r
}
