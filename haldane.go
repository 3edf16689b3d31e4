package qtransport

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// Honeycomb Bravais vectors (nearest-neighbour distance 1/√3).
	a1 = Vec{1, 0, 0}
	a2 = Vec{0.5, math.Sqrt(3) / 2, 0}
	// Next-nearest-neighbour vectors, traversed counterclockwise on sublattice A.
	nnn = [3]Vec{a1, a2.Add(a1.Scale(-1)), a2.Scale(-1)}
)

// HoneycombReciprocal returns the reciprocal vectors b1, b2 of the honeycomb lattice.
func HoneycombReciprocal() []Vec {
	return []Vec{
		{2 * math.Pi, -2 * math.Pi / math.Sqrt(3), 0},
		{0, 4 * math.Pi / math.Sqrt(3), 0},
	}
}

// DiracK returns the K point of the honeycomb Brillouin zone; K' = -K.
func DiracK() Vec {
	return Vec{4 * math.Pi / 3, 0, 0}
}

// Haldane is the Haldane model on the honeycomb lattice, in the sublattice
// basis (A, B):
//
//	H(k) = 2t2 cos φ Σ cos(k·b_i) + Re f σx + Im f σy + (M - 2t2 sin φ Σ sin(k·b_i)) σz
//	f(k) = t1 (1 + exp(-ik·a1) + exp(-ik·a2))
//
// The gap at K is 2|M + 3√3 t2 sin φ| and at K' it is 2|M - 3√3 t2 sin φ|.
type Haldane struct {
	t1, t2, φ, m float64
	sinφ, cosφ   float64
}

// NewHaldane returns a Haldane model with nearest-neighbour hopping t1,
// next-nearest-neighbour hopping t2 with phase φ, and sublattice mass M.
func NewHaldane(t1, t2, φ, M float64) (*Haldane, error) {
	if !finite(t1, t2, φ, M) {
		return nil, fmt.Errorf("haldane: non-finite parameter: %w", ErrInvalidModelParameter)
	}
	if t1 < 0 || t2 < 0 {
		return nil, fmt.Errorf("haldane: hoppings t1 = %g, t2 = %g must be >= 0: %w", t1, t2, ErrInvalidModelParameter)
	}
	s, c := math.Sincos(φ)
	return &Haldane{t1: t1, t2: t2, φ: φ, m: M, sinφ: s, cosφ: c}, nil
}

// Name implements the Hamiltonian interface.
func (m *Haldane) Name() string {
	return HaldaneModel.String()
}

// Orbitals implements the Hamiltonian interface.
func (m *Haldane) Orbitals() int {
	return 2
}

// Dim implements the Hamiltonian interface.
func (m *Haldane) Dim() int {
	return 2
}

// Phase returns the next-nearest-neighbour phase φ.
func (m *Haldane) Phase() float64 {
	return m.φ
}

// Mass returns the sublattice mass M.
func (m *Haldane) Mass() float64 {
	return m.m
}

// Vector returns the (d0, dx, dy, dz) components of H(k).
func (m *Haldane) Vector(k Vec) (d0, dx, dy, dz float64) {
	return honeycomb(k, m.t1, m.t2, m.sinφ, m.cosφ, m.m)
}

// HamiltonianTo implements the Hamiltonian interface.
func (m *Haldane) HamiltonianTo(dst *mat.CDense, k Vec) {
	d0, dx, dy, dz := m.Vector(k)
	setTwoBand(dst, 0, d0, dx, dy, dz)
}

// VelocityTo implements the Hamiltonian interface.
func (m *Haldane) VelocityTo(dst *mat.CDense, k Vec, axis int) {
	d0, dx, dy, dz := honeycombDerivative(k, axis, m.t1, m.t2, m.sinφ, m.cosφ)
	setTwoBand(dst, 0, d0, dx, dy, dz)
}

// ReciprocalVectors implements the Lattice interface.
func (m *Haldane) ReciprocalVectors() []Vec {
	return HoneycombReciprocal()
}

// honeycomb returns the Pauli components of a Haldane sector.
func honeycomb(k Vec, t1, t2, sinφ, cosφ, M float64) (d0, dx, dy, dz float64) {
	s1, c1 := math.Sincos(k.Dot(a1))
	s2, c2 := math.Sincos(k.Dot(a2))
	dx = t1 * (1 + c1 + c2)
	dy = -t1 * (s1 + s2)
	var sumCos, sumSin float64
	for _, b := range nnn {
		s, c := math.Sincos(k.Dot(b))
		sumCos += c
		sumSin += s
	}
	d0 = 2 * t2 * cosφ * sumCos
	dz = M - 2*t2*sinφ*sumSin
	return
}

// honeycombDerivative returns the derivatives of the Pauli components along axis.
func honeycombDerivative(k Vec, axis int, t1, t2, sinφ, cosφ float64) (d0, dx, dy, dz float64) {
	if axis > 1 {
		return
	}
	s1, c1 := math.Sincos(k.Dot(a1))
	s2, c2 := math.Sincos(k.Dot(a2))
	dx = -t1 * (s1*a1[axis] + s2*a2[axis])
	dy = -t1 * (c1*a1[axis] + c2*a2[axis])
	for _, b := range nnn {
		s, c := math.Sincos(k.Dot(b))
		d0 -= 2 * t2 * cosφ * s * b[axis]
		dz -= 2 * t2 * sinφ * c * b[axis]
	}
	return
}
