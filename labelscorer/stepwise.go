package labelscorer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rwth-i6/rasr-sub008/internal/mathutil"
)

// Transform selects how input frames are turned into costs.
type Transform string

const (
	TransformCosts    Transform = "costs"     // frames already hold costs
	TransformLogProbs Transform = "log-probs" // frames hold log probabilities
	TransformLogits   Transform = "logits"    // frames hold unnormalized logits
)

// StepwiseConfig holds parameters of a StepwiseScorer.
type StepwiseConfig struct {
	Scale     float64   `yaml:"scale"`
	Transform Transform `yaml:"transform"`
}

// DefaultStepwiseConfig returns unscaled costs.
func DefaultStepwiseConfig() StepwiseConfig {
	return StepwiseConfig{Scale: 1.0, Transform: TransformCosts}
}

// StepwiseScorer scores token k at step t with the k-th entry of frame t.
// Every transition consumes exactly one frame.
type StepwiseScorer struct {
	BufferedScorer
	cfg StepwiseConfig
	log logrus.FieldLogger
	tmp mathutil.Vec
}

// NewStepwiseScorer creates a scorer; log may be nil.
func NewStepwiseScorer(cfg StepwiseConfig, log logrus.FieldLogger) (*StepwiseScorer, error) {
	switch cfg.Transform {
	case TransformCosts, TransformLogProbs, TransformLogits:
	case "":
		cfg.Transform = TransformCosts
	default:
		return nil, fmt.Errorf("unknown score transform %q", cfg.Transform)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &StepwiseScorer{cfg: cfg, log: log.WithField("scorer", "stepwise")}
	s.Reset()
	return s, nil
}

// AddInput converts the frame to scaled costs and buffers it.
func (s *StepwiseScorer) AddInput(input []float64) {
	if cap(s.tmp) < len(input) {
		s.tmp = mathutil.NewVec(len(input))
	}
	costs := s.tmp[:len(input)]
	switch s.cfg.Transform {
	case TransformCosts:
		copy(costs, input)
	case TransformLogProbs:
		mathutil.ScaleVec(costs, -1, input)
	case TransformLogits:
		mathutil.NegLogSoftmax(costs, input)
	}
	if s.cfg.Scale != 1.0 {
		mathutil.ScaleVec(costs, s.cfg.Scale, costs)
	}
	s.BufferedScorer.AddInput(costs)
}

// AddInputs splits data into nTimesteps frames and adds each of them.
func (s *StepwiseScorer) AddInputs(data []float64, nTimesteps int) {
	if nTimesteps <= 0 {
		return
	}
	if len(data)%nTimesteps != 0 {
		panic("labelscorer: input size is not a multiple of the number of timesteps")
	}
	dim := len(data) / nTimesteps
	for t := 0; t < nTimesteps; t++ {
		s.AddInput(data[t*dim : (t+1)*dim])
	}
}

func (s *StepwiseScorer) InitialScoringContext() ScoringContext {
	return &StepContext{Step: 0}
}

func (s *StepwiseScorer) ExtendedScoringContext(req Request) ScoringContext {
	return &StepContext{Step: stepOf(req.Context) + 1}
}

func (s *StepwiseScorer) ScoresWithTimes(reqs []Request) (ScoresWithTimes, bool) {
	res := ScoresWithTimes{
		Scores:    make([]float64, len(reqs)),
		Timesteps: make([]int, len(reqs)),
	}
	for i, req := range reqs {
		step := stepOf(req.Context)
		frame, ok := s.Frame(step)
		if !ok {
			return ScoresWithTimes{}, false
		}
		if int(req.NextToken) < 0 || int(req.NextToken) >= len(frame) {
			panic(fmt.Sprintf("labelscorer: token %d outside of score frame of size %d", req.NextToken, len(frame)))
		}
		res.Scores[i] = frame[req.NextToken]
		res.Timesteps[i] = step
	}
	return res, true
}

// CleanupCaches drops frames that precede every active step.
func (s *StepwiseScorer) CleanupCaches(active []ScoringContext) {
	if len(active) == 0 {
		return
	}
	oldest := stepOf(active[0])
	for _, c := range active[1:] {
		oldest = min(oldest, stepOf(c))
	}
	s.DropBefore(oldest)
	s.log.WithField("oldest_step", oldest).Debug("dropped buffered frames")
}

func stepOf(c ScoringContext) int {
	sc, ok := c.(*StepContext)
	if !ok || sc == nil {
		panic(fmt.Sprintf("labelscorer: expected step context, got %T", c))
	}
	return sc.Step
}
