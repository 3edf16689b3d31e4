package qtransport

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Altermagnet is a two-band d-wave altermagnet in the spin basis (↑, ↓):
//
//	H(k) = ε(k) + λ sin((kx+ky)/2) σx + λ sin((ky-kx)/2) σy + J (cos kx - cos ky) σz
//	ε(k) = -2t (cos kx + cos ky)
//
// The spin splitting changes sign under a 90° rotation, so the net
// magnetization vanishes while the bands are spin split away from the diagonals.
type Altermagnet struct {
	t, j, λ float64
}

// NewAltermagnet returns an altermagnet with hopping t, altermagnetic
// exchange J and spin-orbit coupling λ.
func NewAltermagnet(t, J, λ float64) (*Altermagnet, error) {
	if !finite(t, J, λ) {
		return nil, fmt.Errorf("altermagnet: non-finite parameter: %w", ErrInvalidModelParameter)
	}
	if t < 0 {
		return nil, fmt.Errorf("altermagnet: hopping t = %g < 0: %w", t, ErrInvalidModelParameter)
	}
	return &Altermagnet{t: t, j: J, λ: λ}, nil
}

// Name implements the Hamiltonian interface.
func (m *Altermagnet) Name() string {
	return AltermagnetModel.String()
}

// Orbitals implements the Hamiltonian interface.
func (m *Altermagnet) Orbitals() int {
	return 2
}

// Dim implements the Hamiltonian interface.
func (m *Altermagnet) Dim() int {
	return 2
}

// Exchange returns J.
func (m *Altermagnet) Exchange() float64 {
	return m.j
}

// SpinSplitting returns the band splitting E+ - E- at k.
func (m *Altermagnet) SpinSplitting(k Vec) float64 {
	_, dx, dy, dz := m.vector(k)
	return 2 * math.Sqrt(dx*dx+dy*dy+dz*dz)
}

func (m *Altermagnet) vector(k Vec) (d0, dx, dy, dz float64) {
	cx, cy := math.Cos(k[0]), math.Cos(k[1])
	d0 = -2 * m.t * (cx + cy)
	dx = m.λ * math.Sin((k[0]+k[1])/2)
	dy = m.λ * math.Sin((k[1]-k[0])/2)
	dz = m.j * (cx - cy)
	return
}

// HamiltonianTo implements the Hamiltonian interface.
func (m *Altermagnet) HamiltonianTo(dst *mat.CDense, k Vec) {
	d0, dx, dy, dz := m.vector(k)
	setTwoBand(dst, 0, d0, dx, dy, dz)
}

// VelocityTo implements the Hamiltonian interface.
func (m *Altermagnet) VelocityTo(dst *mat.CDense, k Vec, axis int) {
	if axis > 1 {
		setTwoBand(dst, 0, 0, 0, 0, 0)
		return
	}
	sign := 1.0
	if axis == 0 {
		sign = -1
	}
	s := math.Sin(k[axis])
	d0 := 2 * m.t * s
	dx := m.λ / 2 * math.Cos((k[0]+k[1])/2)
	dy := sign * m.λ / 2 * math.Cos((k[1]-k[0])/2)
	dz := sign * m.j * s
	setTwoBand(dst, 0, d0, dx, dy, dz)
}

// ReciprocalVectors implements the Lattice interface.
func (m *Altermagnet) ReciprocalVectors() []Vec {
	return []Vec{{2 * math.Pi, 2 * math.Pi, 0}, {2 * math.Pi, -2 * math.Pi, 0}}
}
