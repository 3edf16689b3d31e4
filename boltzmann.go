package qtransport

import (
	"context"
	"errors"
	"fmt"
	"time"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"
)

// BoltzmannOptions configures a BoltzmannSolver.
type BoltzmannOptions struct {
	Thermal Thermal
	// Smearing is the width of the Gaussian replacing -∂f/∂E at T = 0 (default 0.01).
	Smearing float64
	// Measure multiplies the weighted k-sums. It defaults to (2π)^-d, times
	// the zone volume on a normalized mesh.
	Measure float64
	// DegeneracyTol overrides the degeneracy tolerance of the band structure.
	DegeneracyTol float64
	Workers       int
	Logger        kitlog.Logger
}

func (o BoltzmannOptions) withDefaults() BoltzmannOptions {
	if o.Smearing <= 0 {
		o.Smearing = 0.01
	}
	if o.Logger == nil {
		o.Logger = kitlog.NewNopLogger()
	}
	return o
}

// BoltzmannSolver computes transport coefficients in the relaxation-time
// approximation of the linearized Boltzmann equation.
type BoltzmannSolver struct {
	opts BoltzmannOptions
}

// NewBoltzmannSolver returns a solver with the provided options.
func NewBoltzmannSolver(opts BoltzmannOptions) *BoltzmannSolver {
	return &BoltzmannSolver{opts: opts.withDefaults()}
}

// BoltzmannResult holds the d x d Onsager tensors at one (T, μ, τ). With unit
// charge, Sigma = L0, Alpha = L1/T and Kappa = (L2 - L1 L0⁻¹ L1)/T, where
//
//	L_α = τ Σ_k w_k Σ_n (-∂f/∂E) (E_n - μ)^α v_n v_n
//
// Alpha and Kappa are zero at T = 0. T is the thermal energy in model units.
type BoltzmannResult struct {
	T, Mu, Tau          float64
	Sigma, Alpha, Kappa *mat.Dense
}

// Seebeck returns Sigma⁻¹ Alpha, or an error if Sigma is singular.
func (r *BoltzmannResult) Seebeck() (*mat.Dense, error) {
	var s mat.Dense
	if err := s.Solve(r.Sigma, r.Alpha); err != nil {
		return nil, err
	}
	return &s, nil
}

// Solve computes the transport tensors of bs at temperature T, chemical
// potential μ and relaxation time τ.
//
// Group velocities come from the velocity operator in the eigenbasis. Inside
// a degenerate cluster v_a v_b is replaced by Re Tr(P v_a P v_b), which does
// not depend on the basis chosen in the cluster.
func (s *BoltzmannSolver) Solve(ctx context.Context, bs *BandStructure, T, μ, τ float64) (*BoltzmannResult, error) {
	occ, err := newOccupation(s.opts.Thermal, T, μ, s.opts.Smearing)
	if err != nil {
		return nil, err
	}
	if !finite(τ) || τ < 0 {
		return nil, fmt.Errorf("τ = %g: %w", τ, ErrInvalidRelaxationTime)
	}
	start := time.Now()
	d := bs.mesh.Dim()
	tol := s.opts.DegeneracyTol
	if tol <= 0 {
		tol = bs.degTol
	}
	n := bs.n

	slots := make([][3][3][3]float64, numBlocks(bs.Len()))
	err = sweep(ctx, bs.Len(), s.opts.Workers, func(ctx context.Context, block, lo, hi int) error {
		p := newPointWork(bs)
		window := make([]float64, n)
		acc := &slots[block]
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := bs.energies[i*n : (i+1)*n]
			cl := p.group(e, tol)
			active := false
			for c := 0; c < n; c++ {
				window[c] = 0
				if cl[c] == c {
					window[c] = occ.window(clusterEnergy(e, c, p.ends[c]))
					active = active || window[c] != 0
				}
			}
			if !active {
				continue
			}
			p.load(bs, i)
			w := bs.mesh.At(i).Weight
			for c := 0; c < n; c++ {
				if window[c] == 0 {
					continue
				}
				x := clusterEnergy(e, c, p.ends[c]) - μ
				wf := w * window[c]
				for a := 0; a < d; a++ {
					for b := 0; b < d; b++ {
						t := wf * clusterTrace(p.vel[a], p.vel[b], c, p.ends[c])
						acc[0][a][b] += t
						acc[1][a][b] += t * x
						acc[2][a][b] += t * x * x
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scale := τ * defaultMeasure(s.opts.Measure, bs.mesh)
	var L [3]*mat.Dense
	for α := range L {
		L[α] = mat.NewDense(d, d, nil)
	}
	for _, acc := range slots {
		for α := range L {
			for a := 0; a < d; a++ {
				for b := 0; b < d; b++ {
					L[α].Set(a, b, L[α].At(a, b)+acc[α][a][b])
				}
			}
		}
	}
	for α := range L {
		L[α].Scale(scale, L[α])
	}
	res := &BoltzmannResult{T: occ.kT, Mu: μ, Tau: τ, Sigma: L[0], Alpha: mat.NewDense(d, d, nil), Kappa: mat.NewDense(d, d, nil)}
	if occ.kT > 0 {
		res.Alpha.Scale(1/occ.kT, L[1])
		res.Kappa.Copy(L[2])
		var x mat.Dense
		correct := true
		if err := x.Solve(L[0], L[1]); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return nil, fmt.Errorf("L0⁻¹ L1: %w", err)
			}
			// L0 vanishes in a gap. An ill-conditioned but finite solution
			// still gives the correction.
			correct = !x.IsEmpty() && finiteDense(&x)
			s.opts.Logger.Log("level", "warn", "subsys", "boltzmann", "T", occ.kT, "mu", μ, "cond", float64(cond), "corrected", correct)
		}
		if correct {
			var corr mat.Dense
			corr.Mul(L[1], &x)
			res.Kappa.Sub(res.Kappa, &corr)
		}
		res.Kappa.Scale(1/occ.kT, res.Kappa)
	}
	s.opts.Logger.Log("level", "info", "subsys", "boltzmann", "T", occ.kT, "mu", μ, "tau", τ, "duration", time.Since(start))
	return res, nil
}

func finiteDense(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		if !finite(m.RawRowView(i)[:c]...) {
			return false
		}
	}
	return true
}
