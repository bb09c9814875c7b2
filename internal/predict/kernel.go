// Package predict estimates yield departures from climate features with
// leave-one-out kernel ridge regression.
package predict

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Regressor fits a model to training rows x and targets y.
type Regressor interface {
	Fit(x [][]float64, y []float64) (Model, error)
}

// Model predicts a target for one feature vector.
type Model interface {
	Predict(x []float64) float64
}

// KernelRidge is ridge regression with the polynomial kernel
// k(a, b) = (Gamma*a·b + Coef0)^Degree. A zero Gamma means 1/features.
type KernelRidge struct {
	Degree int
	Alpha  float64
	Coef0  float64
	Gamma  float64
}

// DefaultKernelRidge is a cubic kernel with alpha 0.5.
func DefaultKernelRidge() KernelRidge {
	return KernelRidge{Degree: 3, Alpha: 0.5, Coef0: 1}
}

type kernelModel struct {
	kr    KernelRidge
	gamma float64
	x     [][]float64
	dual  []float64
}

// Fit solves (K + Alpha*I)a = y for the dual coefficients a.
func (kr KernelRidge) Fit(x [][]float64, y []float64) (Model, error) {
	n := len(x)
	if n == 0 {
		return nil, errors.New("no training rows")
	}
	if len(y) != n {
		return nil, fmt.Errorf("%d training rows but %d targets", n, len(y))
	}
	if kr.Degree < 1 {
		return nil, fmt.Errorf("invalid kernel degree %d", kr.Degree)
	}
	if kr.Alpha <= 0 {
		return nil, fmt.Errorf("invalid ridge alpha %g", kr.Alpha)
	}
	gamma := kr.Gamma
	if gamma == 0 {
		if len(x[0]) == 0 {
			return nil, errors.New("no features")
		}
		gamma = 1 / float64(len(x[0]))
	}
	m := &kernelModel{kr: kr, gamma: gamma, x: x}

	gram := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := m.kernel(x[i], x[j])
			if i == j {
				v += kr.Alpha
			}
			gram.SetSym(i, j, v)
		}
	}
	target := mat.NewVecDense(n, append([]float64(nil), y...))

	var dual mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(gram) {
		if err := chol.SolveVecTo(&dual, target); err != nil && !isCondition(err) {
			return nil, fmt.Errorf("cholesky solve: %w", err)
		}
	} else if err := dual.SolveVec(gram, target); err != nil && !isCondition(err) {
		return nil, fmt.Errorf("solve kernel system: %w", err)
	}

	m.dual = make([]float64, n)
	for i := range m.dual {
		m.dual[i] = dual.AtVec(i)
	}
	return m, nil
}

func (m *kernelModel) kernel(a, b []float64) float64 {
	return math.Pow(m.gamma*floats.Dot(a, b)+m.kr.Coef0, float64(m.kr.Degree))
}

func (m *kernelModel) Predict(v []float64) float64 {
	var sum float64
	for i, row := range m.x {
		sum += m.dual[i] * m.kernel(row, v)
	}
	return sum
}

// A mat.Condition error still carries a usable solution.
func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}
