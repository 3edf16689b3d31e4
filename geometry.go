package qtransport

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/mat"
)

// BerryCurvature returns the Berry curvature Ω_n(k) of band n at every mesh
// point of a two-dimensional band structure, in mesh order:
//
//	Ω_n = -2 Im Σ_m v_x,nm v_y,mn / (E_n - E_m)²
//
// where m runs over the bands outside the degenerate cluster of n. Only the
// Workers, DegeneracyTol and Logger options are used.
func BerryCurvature(ctx context.Context, bs *BandStructure, band int, opts BandOptions) ([]float64, error) {
	if bs.mesh.Dim() != 2 {
		return nil, fmt.Errorf("Berry curvature of a %d-dimensional mesh: %w", bs.mesh.Dim(), ErrDimensionMismatch)
	}
	if band < 0 || band >= bs.n {
		return nil, fmt.Errorf("band %d of %d: %w", band, bs.n, ErrDimensionMismatch)
	}
	tol := opts.DegeneracyTol
	if tol <= 0 {
		tol = bs.degTol
	}
	opts = opts.withDefaults()
	start := time.Now()
	n := bs.n
	Ω := make([]float64, bs.Len())
	err := sweep(ctx, bs.Len(), opts.Workers, func(ctx context.Context, _, lo, hi int) error {
		p := newPointWork(bs)
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			e := bs.energies[i*n : (i+1)*n]
			cl := p.group(e, tol)
			p.load(bs, i)
			var sum float64
			for m := 0; m < n; m++ {
				if cl[m] == cl[band] {
					continue
				}
				ΔE := e[band] - e[m]
				sum += imag(p.vel[0].At(band, m)*p.vel[1].At(m, band)) / (ΔE * ΔE)
			}
			Ω[i] = -2 * sum
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	opts.Logger.Log("level", "info", "subsys", "geometry", "model", bs.h.Name(), "band", band, "points", bs.Len(), "duration", time.Since(start))
	return Ω, nil
}

// ChernNumber returns the Chern number of the lowest occupied bands of a
// two-dimensional lattice model, using the Fukui-Hatsugai-Suzuki lattice
// field strength on an n1 x n2 grid of the reciprocal unit cell. The result
// is an integer up to rounding as long as the occupied bands are separated
// from the others by a gap everywhere on the grid.
func ChernNumber(ctx context.Context, h Hamiltonian, n1, n2, occupied int, opts BandOptions) (float64, error) {
	if occupied < 1 || occupied > h.Orbitals() {
		return 0, fmt.Errorf("%d occupied bands of %d: %w", occupied, h.Orbitals(), ErrDimensionMismatch)
	}
	if h.Dim() != 2 {
		return 0, fmt.Errorf("Chern number of a %d-dimensional model: %w", h.Dim(), ErrDimensionMismatch)
	}
	zone, err := LatticeZone(h)
	if err != nil {
		return 0, err
	}
	mesh, err := NewMesh([]int{n1, n2}, zone, Uniform)
	if err != nil {
		return 0, err
	}
	bs, err := ComputeBands(ctx, h, mesh, opts)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	b := zone.Basis
	orientation := 1.0
	if b[0][0]*b[1][1]-b[0][1]*b[1][0] < 0 {
		orientation = -1
	}

	flux := make([]float64, numBlocks(mesh.Len()))
	err = sweep(ctx, mesh.Len(), opts.Workers, func(ctx context.Context, block, lo, hi int) error {
		work := make([]complex128, occupied*occupied)
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			i1, _ := mesh.Neighbor(i, 0, 1)
			i2, _ := mesh.Neighbor(i, 1, 1)
			i12, _ := mesh.Neighbor(i1, 1, 1)
			loop := bs.link(i, i1, occupied, work) *
				bs.link(i1, i12, occupied, work) *
				bs.link(i12, i2, occupied, work) *
				bs.link(i2, i, occupied, work)
			flux[block] -= cmplx.Phase(loop)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	var total float64
	for _, f := range flux {
		total += f
	}
	c := orientation * total / (2 * math.Pi)
	opts.withDefaults().Logger.Log("level", "info", "subsys", "geometry", "model", h.Name(), "grid", fmt.Sprintf("%dx%d", n1, n2), "occupied", occupied, "chern", c, "duration", time.Since(start))
	return c, nil
}

// link returns det <u_n(i)|u_m(j)> over the lowest occupied bands.
func (bs *BandStructure) link(i, j, occupied int, work []complex128) complex128 {
	ui, uj := bs.eigenvectors(i), bs.eigenvectors(j)
	for n := 0; n < occupied; n++ {
		for m := 0; m < occupied; m++ {
			var s complex128
			for α := 0; α < bs.n; α++ {
				s += cmplx.Conj(ui.At(α, n)) * uj.At(α, m)
			}
			work[n*occupied+m] = s
		}
	}
	return complexDet(work, occupied)
}

// PlaquetteCurvature returns the Berry curvature of the lowest occupied bands
// at k from the Wilson loop around the square plaquette [k, k + dk]².
func PlaquetteCurvature(h Hamiltonian, k Vec, dk float64, occupied int, opts BandOptions) (float64, error) {
	if occupied < 1 || occupied > h.Orbitals() {
		return 0, fmt.Errorf("%d occupied bands of %d: %w", occupied, h.Orbitals(), ErrDimensionMismatch)
	}
	if !finite(dk) || dk <= 0 {
		return 0, fmt.Errorf("plaquette size %g: %w", dk, ErrInvalidResolution)
	}
	opts = opts.withDefaults()
	n := h.Orbitals()
	corners := []Vec{k, k.Add(Vec{dk, 0, 0}), k.Add(Vec{dk, dk, 0}), k.Add(Vec{0, dk, 0})}
	bs := &BandStructure{h: h, n: n, degTol: opts.DegeneracyTol, energies: make([]float64, 4*n), vectors: make([]complex128, 4*n*n)}
	eig := newHermitianEigen(n, opts.DegeneracyTol)
	H := mat.NewCDense(n, n, nil)
	for c, kc := range corners {
		h.HamiltonianTo(H, kc)
		if err := checkHermitian(H, opts.HermitianTol); err != nil {
			return 0, fmt.Errorf("corner %d (k = %v): %w", c, kc[:2], err)
		}
		if err := eig.factorize(H, bs.energies[c*n:(c+1)*n], bs.eigenvectors(c)); err != nil {
			return 0, fmt.Errorf("corner %d (k = %v): %w", c, kc[:2], err)
		}
	}
	work := make([]complex128, occupied*occupied)
	loop := bs.link(0, 1, occupied, work) * bs.link(1, 2, occupied, work) *
		bs.link(2, 3, occupied, work) * bs.link(3, 0, occupied, work)
	Ω := -cmplx.Phase(loop) / (dk * dk)
	opts.Logger.Log("level", "info", "subsys", "geometry", "model", h.Name(), "k", fmt.Sprint(k[:2]), "dk", dk, "curvature", Ω)
	return Ω, nil
}
