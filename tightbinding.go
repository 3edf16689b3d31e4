package qtransport

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// TightBindingSquare is the square lattice (lattice constant 1) with
// nearest-neighbour hopping t and next-nearest-neighbour hopping tp. Each
// orbital carries its own on-site energy and the orbitals do not hybridize:
//
//	E_a(k) = ε_a - 2t(cos kx + cos ky) - 4tp cos kx cos ky
type TightBindingSquare struct {
	t, tp  float64
	onsite []float64
}

// NewTightBindingSquare returns a square-lattice model. Without on-site
// energies it has a single orbital at zero energy.
func NewTightBindingSquare(t, tp float64, onsite ...float64) (*TightBindingSquare, error) {
	if !finite(t, tp) || !finite(onsite...) {
		return nil, fmt.Errorf("tightbinding-square: non-finite parameter: %w", ErrInvalidModelParameter)
	}
	if t < 0 {
		return nil, fmt.Errorf("tightbinding-square: hopping t = %g < 0: %w", t, ErrInvalidModelParameter)
	}
	if len(onsite) == 0 {
		onsite = []float64{0}
	}
	return &TightBindingSquare{t: t, tp: tp, onsite: append([]float64(nil), onsite...)}, nil
}

// Name implements the Hamiltonian interface.
func (m *TightBindingSquare) Name() string {
	return TightBindingSquareModel.String()
}

// Orbitals implements the Hamiltonian interface.
func (m *TightBindingSquare) Orbitals() int {
	return len(m.onsite)
}

// Dim implements the Hamiltonian interface.
func (m *TightBindingSquare) Dim() int {
	return 2
}

// Hopping returns the nearest- and next-nearest-neighbour hopping amplitudes.
func (m *TightBindingSquare) Hopping() (t, tp float64) {
	return m.t, m.tp
}

// Dispersion returns the band energy without on-site term.
func (m *TightBindingSquare) Dispersion(k Vec) float64 {
	cx, cy := math.Cos(k[0]), math.Cos(k[1])
	return -2*m.t*(cx+cy) - 4*m.tp*cx*cy
}

// GroupVelocity returns ∇ε(k), common to all orbitals.
func (m *TightBindingSquare) GroupVelocity(k Vec) Vec {
	sx, cx := math.Sincos(k[0])
	sy, cy := math.Sincos(k[1])
	return Vec{2*m.t*sx + 4*m.tp*sx*cy, 2*m.t*sy + 4*m.tp*cx*sy, 0}
}

// HamiltonianTo implements the Hamiltonian interface.
func (m *TightBindingSquare) HamiltonianTo(dst *mat.CDense, k Vec) {
	zero(dst)
	ε := m.Dispersion(k)
	for a, e := range m.onsite {
		dst.Set(a, a, complex(e+ε, 0))
	}
}

// VelocityTo implements the Hamiltonian interface.
func (m *TightBindingSquare) VelocityTo(dst *mat.CDense, k Vec, axis int) {
	zero(dst)
	if axis > 1 {
		return
	}
	v := m.GroupVelocity(k)[axis]
	for a := range m.onsite {
		dst.Set(a, a, complex(v, 0))
	}
}

// EnergiesTo implements AnalyticSpectrum for the single-orbital lattice.
func (m *TightBindingSquare) EnergiesTo(dst []float64, k Vec) bool {
	if len(m.onsite) != 1 {
		return false
	}
	dst[0] = m.onsite[0] + m.Dispersion(k)
	return true
}

// ReciprocalVectors implements the Lattice interface.
func (m *TightBindingSquare) ReciprocalVectors() []Vec {
	return []Vec{{2 * math.Pi, 0, 0}, {0, 2 * math.Pi, 0}}
}
