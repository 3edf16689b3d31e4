package qtransport

import (
	"context"
	"fmt"
	"math"
	"time"

	kitlog "github.com/go-kit/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BandOptions configures ComputeBands.
type BandOptions struct {
	Workers       int     // Number of goroutines, GOMAXPROCS if < 1
	HermitianTol  float64 // Relative tolerance of the Hermiticity check
	DegeneracyTol float64 // Relative eigenvalue distance below which bands are degenerate
	Generic       bool    // Disable the analytic spectrum of models which offer one
	Logger        kitlog.Logger
}

func (o BandOptions) withDefaults() BandOptions {
	if o.HermitianTol <= 0 {
		o.HermitianTol = 1e-10
	}
	if o.DegeneracyTol <= 0 {
		o.DegeneracyTol = 1e-9
	}
	if o.Logger == nil {
		o.Logger = kitlog.NewNopLogger()
	}
	return o
}

// BandStructure stores the spectrum of a model over a mesh. It is immutable
// and safe for concurrent use.
type BandStructure struct {
	h        Hamiltonian
	mesh     *Mesh
	n        int
	degTol   float64
	energies []float64    // Len() x n, ascending per point
	vectors  []complex128 // Len() x n x n, row-major, eigenvectors in columns
}

// ComputeBands diagonalizes h at every point of the mesh.
func ComputeBands(ctx context.Context, h Hamiltonian, mesh *Mesh, opts BandOptions) (*BandStructure, error) {
	opts = opts.withDefaults()
	if h.Dim() != mesh.Dim() {
		return nil, fmt.Errorf("%s is %d-dimensional, mesh is %d-dimensional: %w", h.Name(), h.Dim(), mesh.Dim(), ErrDimensionMismatch)
	}
	start := time.Now()
	n := h.Orbitals()
	bs := &BandStructure{
		h:        h,
		mesh:     mesh,
		n:        n,
		degTol:   opts.DegeneracyTol,
		energies: make([]float64, mesh.Len()*n),
		vectors:  make([]complex128, mesh.Len()*n*n),
	}
	analytic, _ := h.(AnalyticSpectrum)
	if opts.Generic {
		analytic = nil
	}
	err := sweep(ctx, mesh.Len(), opts.Workers, func(ctx context.Context, _, lo, hi int) error {
		H := mat.NewCDense(n, n, nil)
		eig := newHermitianEigen(n, opts.DegeneracyTol)
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := mesh.At(i).K
			values := bs.energies[i*n : (i+1)*n]
			vectors := bs.eigenvectors(i)
			if analytic != nil && analytic.EnergiesTo(values, k) {
				for a := 0; a < n; a++ {
					vectors.Set(a, a, 1)
				}
				continue
			}
			h.HamiltonianTo(H, k)
			if err := checkHermitian(H, opts.HermitianTol); err != nil {
				return fmt.Errorf("point %d (k = %v): %w", i, k[:mesh.Dim()], err)
			}
			if err := eig.factorize(H, values, vectors); err != nil {
				return fmt.Errorf("point %d (k = %v): %w", i, k[:mesh.Dim()], err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	opts.Logger.Log("level", "info", "subsys", "bands", "model", h.Name(), "points", mesh.Len(), "orbitals", n, "duration", time.Since(start))
	return bs, nil
}

// checkHermitian returns an error if H differs from H^† by more than tol
// relative to its largest entry.
func checkHermitian(H *mat.CDense, tol float64) error {
	if dev, scale := hermitianDeviation(H); !(dev <= tol*math.Max(1, scale)) {
		return fmt.Errorf("H - H^† = %g: %w", dev, ErrDiagonalization)
	}
	return nil
}

// eigenvectors returns a view of the eigenvectors at point i.
func (bs *BandStructure) eigenvectors(i int) *mat.CDense {
	nn := bs.n * bs.n
	return mat.NewCDense(bs.n, bs.n, bs.vectors[i*nn:(i+1)*nn:(i+1)*nn])
}

// Len returns the number of mesh points.
func (bs *BandStructure) Len() int {
	return bs.mesh.Len()
}

// Bands returns the number of bands.
func (bs *BandStructure) Bands() int {
	return bs.n
}

// Mesh returns the mesh the bands were computed on.
func (bs *BandStructure) Mesh() *Mesh {
	return bs.mesh
}

// Model returns the Hamiltonian the bands were computed from.
func (bs *BandStructure) Model() Hamiltonian {
	return bs.h
}

// DegeneracyTol returns the tolerance used to group degenerate bands.
func (bs *BandStructure) DegeneracyTol() float64 {
	return bs.degTol
}

// Energy returns the energy of band n at point i.
func (bs *BandStructure) Energy(i, n int) float64 {
	return bs.energies[i*bs.n+n]
}

// Energies returns a copy of the ascending energies at point i.
func (bs *BandStructure) Energies(i int) []float64 {
	return append([]float64(nil), bs.energies[i*bs.n:(i+1)*bs.n]...)
}

// Band returns the energy of band n at every point, in mesh order.
func (bs *BandStructure) Band(n int) []float64 {
	band := make([]float64, bs.Len())
	for i := range band {
		band[i] = bs.energies[i*bs.n+n]
	}
	return band
}

// Eigenvectors returns a copy of the eigenvectors at point i, in columns.
func (bs *BandStructure) Eigenvectors(i int) *mat.CDense {
	nn := bs.n * bs.n
	return mat.NewCDense(bs.n, bs.n, append([]complex128(nil), bs.vectors[i*nn:(i+1)*nn]...))
}

// VelocityMatrix returns the velocity operator along axis at point i in the
// eigenbasis, <m|∂H/∂k_axis|n>.
func (bs *BandStructure) VelocityMatrix(i, axis int) *mat.CDense {
	dst := mat.NewCDense(bs.n, bs.n, nil)
	newVelocityWork(bs.n).velocity(dst, bs, i, axis)
	return dst
}

// GroupVelocity returns the Hellmann-Feynman velocity <n|∇H|n> of band n at
// point i. Within a degenerate cluster it depends on the eigenvector choice.
func (bs *BandStructure) GroupVelocity(i, n int) Vec {
	var v Vec
	w := newVelocityWork(bs.n)
	dst := mat.NewCDense(bs.n, bs.n, nil)
	for axis := 0; axis < bs.mesh.Dim(); axis++ {
		w.velocity(dst, bs, i, axis)
		v[axis] = real(dst.At(n, n))
	}
	return v
}

// Gap returns min E_{n+1} - max E_n over the mesh, negative for overlapping bands.
func (bs *BandStructure) Gap(n int) float64 {
	return floats.Min(bs.Band(n+1)) - floats.Max(bs.Band(n))
}

// DirectGap returns the minimum of E_{n+1} - E_n over the mesh, and the
// index of the point where it occurs.
func (bs *BandStructure) DirectGap(n int) (float64, int) {
	diff := bs.Band(n + 1)
	floats.Sub(diff, bs.Band(n))
	i := floats.MinIdx(diff)
	return diff[i], i
}

// BandSummary holds statistics of one band; the mean and standard deviation
// use the mesh weights.
type BandSummary struct {
	Min, Max     float64
	Mean, StdDev float64
}

// Summary returns the statistics of band n.
func (bs *BandStructure) Summary(n int) BandSummary {
	band := bs.Band(n)
	weights := make([]float64, len(band))
	for i := range weights {
		weights[i] = bs.mesh.At(i).Weight
	}
	mean, std := stat.PopMeanStdDev(band, weights)
	return BandSummary{Min: floats.Min(band), Max: floats.Max(band), Mean: mean, StdDev: std}
}

// velocityWork holds the buffers to move velocity operators to the eigenbasis.
type velocityWork struct {
	op, work *mat.CDense
}

func newVelocityWork(n int) *velocityWork {
	return &velocityWork{op: mat.NewCDense(n, n, nil), work: mat.NewCDense(n, n, nil)}
}

// velocity stores U^† ∂H/∂k_axis U at point i in dst.
func (w *velocityWork) velocity(dst *mat.CDense, bs *BandStructure, i, axis int) {
	bs.h.VelocityTo(w.op, bs.mesh.At(i).K, axis)
	toEigenbasis(dst, w.op, bs.eigenvectors(i), w.work)
}
