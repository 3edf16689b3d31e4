package qtransport

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// nnBonds holds, for each term exp(-ik·R) of f(k), the cell R of the B
// neighbour of an A site and the unit vector d from A to that neighbour.
var nnBonds = func() (bonds [3]struct{ R, d Vec }) {
	δ := a1.Add(a2).Scale(1.0 / 3)
	for j, R := range [3]Vec{{}, a1, a2} {
		bonds[j].R = R
		bonds[j].d = δ.Add(R.Scale(-1)).Scale(math.Sqrt(3))
	}
	return bonds
}()

// KaneMele is the Kane-Mele model as a single 4x4 block in the basis
// (A↑, B↑, A↓, B↓). Spin up is a Haldane sector with phase +π/2 and spin
// down one with phase -π/2, both with NNN hopping λso and mass λv. The
// optional Rashba term is the nearest-neighbour hopping
//
//	iλR Σ_<ij> c_i† (s × d_ij)_z c_j
//
// between A and B sites. It couples the spin blocks and breaks Sz
// conservation and inversion, but keeps time reversal: E(k) = E(-k).
type KaneMele struct {
	t, λso, λv, λr float64
}

// NewKaneMele returns a Kane-Mele model with hopping t, intrinsic spin-orbit
// coupling λSO, staggered potential λv and Rashba coupling λR.
func NewKaneMele(t, λSO, λv, λR float64) (*KaneMele, error) {
	if !finite(t, λSO, λv, λR) {
		return nil, fmt.Errorf("kane-mele: non-finite parameter: %w", ErrInvalidModelParameter)
	}
	if t < 0 || λSO < 0 {
		return nil, fmt.Errorf("kane-mele: t = %g, λSO = %g must be >= 0: %w", t, λSO, ErrInvalidModelParameter)
	}
	return &KaneMele{t: t, λso: λSO, λv: λv, λr: λR}, nil
}

// Name implements the Hamiltonian interface.
func (m *KaneMele) Name() string {
	return KaneMeleModel.String()
}

// Orbitals implements the Hamiltonian interface.
func (m *KaneMele) Orbitals() int {
	return 4
}

// Dim implements the Hamiltonian interface.
func (m *KaneMele) Dim() int {
	return 2
}

// Sector returns the spin sector up (true) or down as a spinless Haldane model.
func (m *KaneMele) Sector(up bool) *Haldane {
	φ := -math.Pi / 2
	if up {
		φ = math.Pi / 2
	}
	h, _ := NewHaldane(m.t, m.λso, φ, m.λv)
	h.sinφ, h.cosφ = m.spin(up), 0
	return h
}

func (m *KaneMele) spin(up bool) float64 {
	if up {
		return 1
	}
	return -1
}

// HamiltonianTo implements the Hamiltonian interface.
func (m *KaneMele) HamiltonianTo(dst *mat.CDense, k Vec) {
	zero(dst)
	for s, up := range [2]bool{true, false} {
		d0, dx, dy, dz := honeycomb(k, m.t, m.λso, m.spin(up), 0, m.λv)
		setTwoBand(dst, 2*s, d0, dx, dy, dz)
	}
	if m.λr != 0 {
		m.setRashba(dst, k, -1)
	}
}

// VelocityTo implements the Hamiltonian interface.
func (m *KaneMele) VelocityTo(dst *mat.CDense, k Vec, axis int) {
	zero(dst)
	if axis > 1 {
		return
	}
	for s, up := range [2]bool{true, false} {
		d0, dx, dy, dz := honeycombDerivative(k, axis, m.t, m.λso, m.spin(up), 0)
		setTwoBand(dst, 2*s, d0, dx, dy, dz)
	}
	if m.λr != 0 {
		m.setRashba(dst, k, axis)
	}
}

// setRashba writes the Rashba elements A↑B↓ and A↓B↑ and their conjugates,
// or their derivatives along axis if axis >= 0. Between A and B,
// (s × d)_z has the spin elements ↑↓ = dy + i dx and ↓↑ = dy - i dx.
func (m *KaneMele) setRashba(dst *mat.CDense, k Vec, axis int) {
	var ud, du complex128
	for _, b := range nnBonds {
		s, c := math.Sincos(k.Dot(b.R))
		f := complex(0, m.λr)
		if axis >= 0 {
			// ∂(i exp(-ik·R)) = R exp(-ik·R)
			f = complex(m.λr*b.R[axis], 0)
		}
		f *= complex(c, -s)
		ud += f * complex(b.d[1], b.d[0])
		du += f * complex(b.d[1], -b.d[0])
	}
	dst.Set(0, 3, ud)
	dst.Set(3, 0, cmplx.Conj(ud))
	dst.Set(2, 1, du)
	dst.Set(1, 2, cmplx.Conj(du))
}

// ReciprocalVectors implements the Lattice interface.
func (m *KaneMele) ReciprocalVectors() []Vec {
	return HoneycombReciprocal()
}
