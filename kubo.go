package qtransport

import (
	"context"
	"fmt"
	"math"
	"time"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/mat"
)

// KuboOptions configures a KuboSolver.
type KuboOptions struct {
	Thermal Thermal
	// Smearing is the width of the Gaussian replacing -∂f/∂E at T = 0 in
	// the Drude term (default 0.01).
	Smearing float64
	// Measure multiplies the weighted k-sums. It defaults to (2π)^-d, times
	// the zone volume on a normalized mesh.
	Measure float64
	// DegeneracyTol overrides the degeneracy tolerance of the band structure.
	DegeneracyTol float64
	// Intraband adds the Drude term of the Fermi surface.
	Intraband bool
	// RelaxationTime sets the Drude scattering rate 1/τ; the broadening is used when zero.
	RelaxationTime float64
	Workers        int
	Logger         kitlog.Logger
}

func (o KuboOptions) withDefaults() KuboOptions {
	if o.Smearing <= 0 {
		o.Smearing = 0.01
	}
	if o.Logger == nil {
		o.Logger = kitlog.NewNopLogger()
	}
	return o
}

// KuboSolver evaluates the Kubo formula of the optical conductivity.
type KuboSolver struct {
	opts KuboOptions
}

// NewKuboSolver returns a solver with the provided options.
func NewKuboSolver(opts KuboOptions) *KuboSolver {
	return &KuboSolver{opts: opts.withDefaults()}
}

// KuboResult holds the d x d complex conductivity at one (ω, T, μ, η).
// Sigma is the sum of the interband and intraband parts.
type KuboResult struct {
	Omega, T, Mu, Eta    float64
	Sigma                *mat.CDense
	Interband, Intraband *mat.CDense
}

// Hall returns the antisymmetric part (σxy - σyx)/2.
func (r *KuboResult) Hall() complex128 {
	return (r.Sigma.At(0, 1) - r.Sigma.At(1, 0)) / 2
}

// Solve evaluates, with unit charge and ħ = 1,
//
//	σ_ab = -i Σ_k w_k Σ_{n≠m} (f_n - f_m)/(E_m - E_n) v_a,nm v_b,mn / (E_m - E_n - ω - iη)
//
// where n and m run over different degenerate clusters, plus, if requested, the
// Drude term i Σ_k w_k Σ_n (-∂f/∂E) v_a v_b / (ω + iΓ).
func (s *KuboSolver) Solve(ctx context.Context, bs *BandStructure, ω, T, μ, η float64) (*KuboResult, error) {
	if !finite(η) || η < 0 {
		return nil, fmt.Errorf("η = %g: %w", η, ErrInvalidBroadening)
	}
	if !finite(ω) {
		return nil, fmt.Errorf("ω = %g: %w", ω, ErrInvalidFrequency)
	}
	occ, err := newOccupation(s.opts.Thermal, T, μ, s.opts.Smearing)
	if err != nil {
		return nil, err
	}
	τ := s.opts.RelaxationTime
	if !finite(τ) || τ < 0 {
		return nil, fmt.Errorf("τ = %g: %w", τ, ErrInvalidRelaxationTime)
	}
	Γ := η
	if τ > 0 {
		Γ = 1 / τ
	}
	if s.opts.Intraband && Γ == 0 && ω == 0 {
		return nil, fmt.Errorf("Drude term at ω = 0 without scattering: %w", ErrDegenerateBand)
	}
	start := time.Now()
	d := bs.mesh.Dim()
	n := bs.n
	tol := s.opts.DegeneracyTol
	if tol <= 0 {
		tol = bs.degTol
	}

	type slot struct {
		inter, intra [3][3]complex128
	}
	slots := make([]slot, numBlocks(bs.Len()))
	err = sweep(ctx, bs.Len(), s.opts.Workers, func(ctx context.Context, block, lo, hi int) error {
		p := newPointWork(bs)
		f := make([]float64, n)
		acc := &slots[block]
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := bs.energies[i*n : (i+1)*n]
			cl := p.group(e, tol)
			p.load(bs, i)
			w := bs.mesh.At(i).Weight
			for m := range f {
				f[m] = occ.f(clusterEnergy(e, cl[m], p.ends[cl[m]]))
			}
			for a := 0; a < d; a++ {
				for b := 0; b < d; b++ {
					var sum complex128
					for nn := 0; nn < n; nn++ {
						for m := 0; m < n; m++ {
							if cl[nn] == cl[m] || f[nn] == f[m] {
								continue
							}
							ΔE := e[m] - e[nn]
							x := ΔE - ω
							if η == 0 && math.Abs(x) <= tol*math.Max(1, math.Abs(ΔE)) {
								return fmt.Errorf("point %d, bands %d and %d, E_m - E_n = %g at ω = %g: %w", i, nn, m, ΔE, ω, ErrDegenerateBand)
							}
							g := (f[nn] - f[m]) / ΔE
							sum += complex(g, 0) * p.vel[a].At(nn, m) * p.vel[b].At(m, nn) / complex(x, -η)
						}
					}
					acc.inter[a][b] += complex(w, 0) * sum
				}
			}
			if !s.opts.Intraband {
				continue
			}
			for c := 0; c < n; c++ {
				if cl[c] != c {
					continue
				}
				wf := w * occ.window(clusterEnergy(e, c, p.ends[c]))
				if wf == 0 {
					continue
				}
				for a := 0; a < d; a++ {
					for b := 0; b < d; b++ {
						acc.intra[a][b] += complex(wf*clusterTrace(p.vel[a], p.vel[b], c, p.ends[c]), 0)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	measure := defaultMeasure(s.opts.Measure, bs.mesh)
	res := &KuboResult{
		Omega: ω, T: occ.kT, Mu: μ, Eta: η,
		Sigma:     mat.NewCDense(d, d, nil),
		Interband: mat.NewCDense(d, d, nil),
		Intraband: mat.NewCDense(d, d, nil),
	}
	interScale := complex(0, -measure)
	intraScale := complex(0, measure) / complex(ω, Γ)
	for a := 0; a < d; a++ {
		for b := 0; b < d; b++ {
			var inter, intra complex128
			for _, acc := range slots {
				inter += acc.inter[a][b]
				intra += acc.intra[a][b]
			}
			inter *= interScale
			if s.opts.Intraband {
				intra *= intraScale
			}
			res.Interband.Set(a, b, inter)
			res.Intraband.Set(a, b, intra)
			res.Sigma.Set(a, b, inter+intra)
		}
	}
	s.opts.Logger.Log("level", "info", "subsys", "kubo", "omega", ω, "T", occ.kT, "mu", μ, "eta", η, "duration", time.Since(start))
	return res, nil
}
