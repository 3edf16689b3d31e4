package qtransport

import (
	"math"
	"math/cmplx"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// nonHermitian is a broken two-band model: its off-diagonal entries are not
// complex conjugates of each other.
type nonHermitian struct{}

func (nonHermitian) Name() string  { return "broken" }
func (nonHermitian) Orbitals() int { return 2 }
func (nonHermitian) Dim() int      { return 2 }

func (nonHermitian) HamiltonianTo(dst *mat.CDense, k Vec) {
	setTwoBand(dst, 0, 0, math.Cos(k[0]), 0, 1)
	dst.Set(0, 1, complex(math.Cos(k[0]), 0.5))
}

func (nonHermitian) VelocityTo(dst *mat.CDense, k Vec, axis int) {
	zero(dst)
}

// testModels returns an instance of every model with all its terms switched on.
func testModels(t *testing.T) []Hamiltonian {
	t.Helper()
	var models []Hamiltonian
	add := func(h Hamiltonian, err error) {
		if err != nil {
			t.Fatalf("model construction: %s", err)
		}
		models = append(models, h)
	}
	add(NewTightBindingSquare(1, 0.3))
	add(NewTightBindingSquare(1, -0.2, 0, 0.5, 2))
	add(NewHaldane(1, 0.15, 0.7, 0.3))
	add(NewKaneMele(1, 0.1, 0.2, 0.05))
	add(NewAltermagnet(1, 0.4, 0.3))
	return models
}

// unitaryDeviation returns max |U^† U - I|.
func unitaryDeviation(u *mat.CDense) float64 {
	n, _ := u.Dims()
	var dev float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var s complex128
			for a := 0; a < n; a++ {
				s += cmplx.Conj(u.At(a, i)) * u.At(a, j)
			}
			if i == j {
				s--
			}
			dev = math.Max(dev, cmplx.Abs(s))
		}
	}
	return dev
}

// testMesh returns a uniform mesh of the reciprocal cell of h.
func testMesh(t *testing.T, h Hamiltonian, n int) *Mesh {
	t.Helper()
	zone, err := LatticeZone(h)
	if err != nil {
		t.Fatalf("zone: %s", err)
	}
	m, err := NewMesh([]int{n, n}, zone, Uniform)
	if err != nil {
		t.Fatalf("mesh: %s", err)
	}
	return m
}

// cmatrixClose returns whether a and b agree entrywise within tol.
func cmatrixClose(a, b *mat.CDense, tol float64) bool {
	r, c := a.Dims()
	if br, bc := b.Dims(); br != r || bc != c {
		return false
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if cmplx.Abs(a.At(i, j)-b.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}
