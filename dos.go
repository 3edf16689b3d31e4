package qtransport

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/floats"
)

// gaussianCutoff is the distance, in widths, beyond which a Gaussian kernel is dropped.
const gaussianCutoff = 8

// Window is the energy interval [Min, Max] of a density of states.
type Window struct {
	Min, Max float64
}

// Kernel is the broadening kernel of a density of states.
type Kernel uint8

const (
	// Gaussian is exp(-x²/2σ²)/(σ√2π), truncated at 8σ.
	Gaussian Kernel = iota
	// Lorentzian is (η/π)/(x²+η²).
	Lorentzian
)

func (k Kernel) String() string {
	if k == Lorentzian {
		return "lorentzian"
	}
	return "gaussian"
}

// KernelFromString returns the kernel named s.
func KernelFromString(s string) (Kernel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gaussian", "gauss", "":
		return Gaussian, nil
	case "lorentzian", "lorentz", "cauchy":
		return Lorentzian, nil
	}
	return 0, fmt.Errorf("unknown kernel %q: %w", s, ErrInvalidBroadening)
}

// DOSOptions configures ComputeDOS.
type DOSOptions struct {
	Kernel Kernel
	// Projection restricts the density to these orbitals, weighting each state
	// by Σ_α |<α|ψ>|². Nil means all orbitals.
	Projection []int
	Workers    int
	Logger     kitlog.Logger
}

// DOS is a density of states sampled at the centres of equal energy bins.
type DOS struct {
	window     Window
	broadening float64
	kernel     Kernel
	energies   []float64
	density    []float64
}

// ComputeDOS accumulates Σ_k w_k Σ_n K(E - E_nk) on bins energy bins of the window.
func ComputeDOS(ctx context.Context, bs *BandStructure, window Window, bins int, broadening float64, opts DOSOptions) (*DOS, error) {
	if !finite(broadening) || broadening <= 0 {
		return nil, fmt.Errorf("broadening %g: %w", broadening, ErrInvalidBroadening)
	}
	if !finite(window.Min, window.Max) || window.Max <= window.Min {
		return nil, fmt.Errorf("[%g, %g]: %w", window.Min, window.Max, ErrInvalidWindow)
	}
	if bins < 1 {
		return nil, fmt.Errorf("%d bins: %w", bins, ErrInvalidResolution)
	}
	for _, α := range opts.Projection {
		if α < 0 || α >= bs.n {
			return nil, fmt.Errorf("projection on orbital %d of %d: %w", α, bs.n, ErrDimensionMismatch)
		}
	}
	if opts.Logger == nil {
		opts.Logger = kitlog.NewNopLogger()
	}
	start := time.Now()
	dE := (window.Max - window.Min) / float64(bins)
	d := &DOS{window: window, broadening: broadening, kernel: opts.Kernel, energies: make([]float64, bins)}
	for i := range d.energies {
		d.energies[i] = window.Min + (float64(i)+0.5)*dE
	}

	slots := make([][]float64, numBlocks(bs.Len()))
	err := sweep(ctx, bs.Len(), opts.Workers, func(ctx context.Context, block, lo, hi int) error {
		acc := make([]float64, bins)
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			w := bs.mesh.At(i).Weight
			for n := 0; n < bs.n; n++ {
				weight := w
				if opts.Projection != nil {
					weight *= bs.projection(i, n, opts.Projection)
				}
				if weight == 0 {
					continue
				}
				d.deposit(acc, bs.Energy(i, n), weight, dE)
			}
		}
		slots[block] = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.density = make([]float64, bins)
	for _, acc := range slots {
		floats.Add(d.density, acc)
	}
	opts.Logger.Log("level", "info", "subsys", "dos", "kernel", opts.Kernel, "bins", bins, "broadening", broadening, "duration", time.Since(start))
	return d, nil
}

// deposit adds weight·K(E_i - e) to every bin i within reach of the kernel.
func (d *DOS) deposit(acc []float64, e, weight, dE float64) {
	lo, hi := 0, len(acc)-1
	if d.kernel == Gaussian {
		reach := gaussianCutoff * d.broadening
		lo = max(lo, int(math.Ceil((e-reach-d.window.Min)/dE-0.5)))
		hi = min(hi, int(math.Floor((e+reach-d.window.Min)/dE-0.5)))
	}
	for i := lo; i <= hi; i++ {
		x := d.energies[i] - e
		if d.kernel == Gaussian {
			acc[i] += weight * gaussian(x, d.broadening)
		} else {
			acc[i] += weight * d.broadening / math.Pi / (x*x + d.broadening*d.broadening)
		}
	}
}

// projection returns Σ_α |<α|ψ_n>|² at point i.
func (bs *BandStructure) projection(i, n int, orbitals []int) float64 {
	nn := bs.n * bs.n
	u := bs.vectors[i*nn : (i+1)*nn]
	var p float64
	for _, α := range orbitals {
		c := u[α*bs.n+n]
		p += real(c)*real(c) + imag(c)*imag(c)
	}
	return p
}

// Len returns the number of bins.
func (d *DOS) Len() int {
	return len(d.energies)
}

// At returns the energy and density of bin i.
func (d *DOS) At(i int) (energy, density float64) {
	return d.energies[i], d.density[i]
}

// Energies returns a copy of the bin centres.
func (d *DOS) Energies() []float64 {
	return append([]float64(nil), d.energies...)
}

// Density returns a copy of the densities.
func (d *DOS) Density() []float64 {
	return append([]float64(nil), d.density...)
}

// Window returns the energy window.
func (d *DOS) Window() Window {
	return d.window
}

// Broadening returns the kernel width.
func (d *DOS) Broadening() float64 {
	return d.broadening
}

// Integral returns the midpoint-rule integral of the density over the window.
func (d *DOS) Integral() float64 {
	dE := (d.window.Max - d.window.Min) / float64(len(d.density))
	return floats.Sum(d.density) * dE
}
