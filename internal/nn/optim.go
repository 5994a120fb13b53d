package nn

import (
	"math"
)

// Optimizer applies accumulated gradients to the parameters it was built over.
// It never touches any other parameter.
type Optimizer interface {
	Step()
	Params() []*Param
}

// Adam implements the Adam update rule.
type Adam struct {
	LearningRate float64
	Beta1, Beta2 float64
	Epsilon      float64
	params       []*Param
	m, v         [][]float64
	t            int
}

// NewAdam builds an Adam optimizer owning params.
func NewAdam(params []*Param, lr, beta1, beta2 float64) *Adam {
	a := &Adam{
		LearningRate: lr,
		Beta1:        beta1,
		Beta2:        beta2,
		Epsilon:      1e-8,
		params:       params,
		m:            make([][]float64, len(params)),
		v:            make([][]float64, len(params)),
	}
	for i, p := range params {
		n := len(p.Value.RawMatrix().Data)
		a.m[i] = make([]float64, n)
		a.v[i] = make([]float64, n)
	}
	return a
}

func (a *Adam) Step() {
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, p := range a.params {
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		m, v := a.m[i], a.v[i]
		for j := range w {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g[j]
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g[j]*g[j]
			w[j] -= a.LearningRate * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.Epsilon)
		}
	}
}

func (a *Adam) Params() []*Param { return a.params }

// SGD is plain gradient descent with optional momentum.
type SGD struct {
	LearningRate float64
	Momentum     float64
	params       []*Param
	vel          [][]float64
}

// NewSGD builds an SGD optimizer owning params.
func NewSGD(params []*Param, lr, momentum float64) *SGD {
	s := &SGD{LearningRate: lr, Momentum: momentum, params: params, vel: make([][]float64, len(params))}
	for i, p := range params {
		s.vel[i] = make([]float64, len(p.Value.RawMatrix().Data))
	}
	return s
}

func (s *SGD) Step() {
	for i, p := range s.params {
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		vel := s.vel[i]
		for j := range w {
			vel[j] = s.Momentum*vel[j] - s.LearningRate*g[j]
			w[j] += vel[j]
		}
	}
}

func (s *SGD) Params() []*Param { return s.params }
