// Package evaluator provides a trainable policy/value model for guided search.
package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"checkers/game"
	"checkers/searcher"
	"checkers/training"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Inputs is the encoded position plus a bias term.
const Inputs = game.Features + 1

const (
	DefaultLearningRate = 3e-4
	beta1               = 0.9
	beta2               = 0.999
	adamEpsilon         = 1e-8
)

type Option func(l *Linear)

func WithLearningRate(lr float64) Option {
	return func(l *Linear) {
		if lr > 0 {
			l.lr = lr
		}
	}
}

// WithInit draws the initial weights from N(0, scale^2).
func WithInit(seed uint64, scale float64) Option {
	return func(l *Linear) {
		rng := rand.New(rand.NewSource(seed))
		for _, data := range [][]float64{l.policy.RawMatrix().Data, l.value.RawVector().Data} {
			for i := range data {
				data[i] = rng.NormFloat64() * scale
			}
		}
	}
}

// Linear is a linear policy/value model over game.Encode features. Policy
// logits are masked to the legal moves and softmaxed; the value is a tanh of
// a second linear head. Predictions are from the side to move.
type Linear struct {
	policy *mat.Dense    // MoveSpace x Inputs
	value  *mat.VecDense // Inputs

	lr   float64
	step int
	// Adam moments
	mPolicy, vPolicy *mat.Dense
	mValue, vValue   *mat.VecDense
}

func NewLinear(options ...Option) *Linear {
	l := &Linear{
		policy:  mat.NewDense(game.MoveSpace, Inputs, nil),
		value:   mat.NewVecDense(Inputs, nil),
		lr:      DefaultLearningRate,
		mPolicy: mat.NewDense(game.MoveSpace, Inputs, nil),
		vPolicy: mat.NewDense(game.MoveSpace, Inputs, nil),
		mValue:  mat.NewVecDense(Inputs, nil),
		vValue:  mat.NewVecDense(Inputs, nil),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func features(position game.Position) *mat.VecDense {
	x := make([]float64, Inputs)
	copy(x, game.Encode(position, position.Player()))
	x[Inputs-1] = 1
	return mat.NewVecDense(Inputs, x)
}

// forward returns the masked softmax over legal, the raw value
// activation and the input vector.
func (l *Linear) forward(position game.Position, legal []game.Move) ([]float64, float64, *mat.VecDense) {
	x := features(position)
	probs := make([]float64, len(legal))
	for i, move := range legal {
		probs[i] = mat.Dot(l.policy.RowView(move.Index()), x)
	}
	if len(probs) > 0 {
		// Numerically stable softmax
		floats.AddConst(-floats.Max(probs), probs)
		for i := range probs {
			probs[i] = math.Exp(probs[i])
		}
		floats.Scale(1/floats.Sum(probs), probs)
	}
	return probs, math.Tanh(mat.Dot(l.value, x)), x
}

func (l *Linear) Evaluate(position game.Position, legal []game.Move) (searcher.Prediction, error) {
	probs, value, _ := l.forward(position, legal)
	priors := make(map[game.Move]float64, len(legal))
	for i, move := range legal {
		priors[move] = probs[i]
	}
	return searcher.Prediction{Priors: priors, Value: value}, nil
}

// TrainStep computes the joint loss of the batch and its gradient, then
// applies one Adam step.
func (l *Linear) TrainStep(batch []training.Sample) (float64, error) {
	if len(batch) == 0 {
		return 0, fmt.Errorf("empty batch")
	}

	gradPolicy := make(map[int][]float64) // Sparse rows, keyed by move index
	gradValue := make([]float64, Inputs)
	loss := 0.0

	for _, sample := range batch {
		probs, v, x := l.forward(sample.Position, sample.Legal)
		xs := x.RawVector().Data

		// Value head: d/da (tanh(a) - z)^2 = 2(v - z)(1 - v^2)
		diff := v - sample.Value
		loss += diff * diff
		floats.AddScaled(gradValue, 2*diff*(1-v*v), xs)

		if sample.Move == nil {
			continue
		}
		target := -1
		for i, move := range sample.Legal {
			if move == *sample.Move {
				target = i
				break
			}
		}
		if target < 0 {
			loss -= sample.Weight * math.Log(training.Epsilon)
			continue
		}
		// Policy head: d/dlogit_k -w*log(p_t + eps) = -w*p_t*(1[k=t] - p_k)/(p_t + eps)
		pt := probs[target]
		loss -= sample.Weight * math.Log(pt+training.Epsilon)
		scale := -sample.Weight * pt / (pt + training.Epsilon)
		for k, move := range sample.Legal {
			indicator := 0.0
			if k == target {
				indicator = 1
			}
			row, ok := gradPolicy[move.Index()]
			if !ok {
				row = make([]float64, Inputs)
				gradPolicy[move.Index()] = row
			}
			floats.AddScaled(row, scale*(indicator-probs[k]), xs)
		}
	}

	l.adam(gradPolicy, gradValue)
	return loss, nil
}

func (l *Linear) adam(gradPolicy map[int][]float64, gradValue []float64) {
	l.step++
	correction1 := 1 - math.Pow(beta1, float64(l.step))
	correction2 := 1 - math.Pow(beta2, float64(l.step))

	update := func(param, m, v, grad []float64) {
		for i := range param {
			g := 0.0
			if grad != nil {
				g = grad[i]
			}
			m[i] = beta1*m[i] + (1-beta1)*g
			v[i] = beta2*v[i] + (1-beta2)*g*g
			param[i] -= l.lr * (m[i] / correction1) / (math.Sqrt(v[i]/correction2) + adamEpsilon)
		}
	}

	update(l.value.RawVector().Data, l.mValue.RawVector().Data, l.vValue.RawVector().Data, gradValue)
	for row := 0; row < game.MoveSpace; row++ {
		update(l.policy.RawRowView(row), l.mPolicy.RawRowView(row), l.vPolicy.RawRowView(row), gradPolicy[row])
	}
}

type snapshot struct {
	Inputs int       `json:"inputs"`
	Moves  int       `json:"moves"`
	Policy []float64 `json:"policy"`
	Value  []float64 `json:"value"`
}

// Save writes the weights as JSON. Optimizer state is not kept.
func (l *Linear) Save(path string) error {
	data, err := json.Marshal(snapshot{
		Inputs: Inputs,
		Moves:  game.MoveSpace,
		Policy: l.policy.RawMatrix().Data,
		Value:  l.value.RawVector().Data,
	})
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}
	return nil
}

func Load(path string, options ...Option) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse weights: %w", err)
	}
	if s.Inputs != Inputs || s.Moves != game.MoveSpace || len(s.Policy) != Inputs*game.MoveSpace || len(s.Value) != Inputs {
		return nil, fmt.Errorf("weights shape %dx%d does not match %dx%d", s.Moves, s.Inputs, game.MoveSpace, Inputs)
	}
	l := NewLinear(options...)
	copy(l.policy.RawMatrix().Data, s.Policy)
	copy(l.value.RawVector().Data, s.Value)
	return l, nil
}
