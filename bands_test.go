package qtransport

import (
	"bytes"
	"context"
	"math"
	"math/cmplx"
	"sort"
	"strings"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestBandsSquareLattice(t *testing.T) {
	h, _ := NewTightBindingSquare(1, 0)
	mesh, err := NewMesh([]int{64, 64}, SquareZone(1), Uniform)
	require.NoError(t, err)
	var logs bytes.Buffer
	bs, err := ComputeBands(context.Background(), h, mesh, BandOptions{Logger: kitlog.NewLogfmtLogger(&logs)})
	require.NoError(t, err)
	if !strings.Contains(logs.String(), "subsys=bands") {
		t.Fatalf("missing log line: %q", logs.String())
	}
	// k = (0, 0) is the 32nd sample of each axis.
	Γ := 32*64 + 32
	if mesh.At(Γ).K != (Vec{}) {
		t.Fatalf("point %d is %v", Γ, mesh.At(Γ).K)
	}
	if !scalar.EqualWithinAbs(bs.Energy(Γ, 0), -4, 1e-12) {
		t.Fatalf("E(Γ) = %f", bs.Energy(Γ, 0))
	}
	s := bs.Summary(0)
	if !scalar.EqualWithinAbs(s.Min, -4, 1e-12) || !scalar.EqualWithinAbs(s.Max, 4, 1e-12) {
		t.Fatalf("band range [%f, %f]", s.Min, s.Max)
	}
	if !scalar.EqualWithinAbs(s.Mean, 0, 1e-12) || !scalar.EqualWithinRel(s.StdDev, 2, 1e-2) {
		t.Fatalf("mean = %g, std = %g", s.Mean, s.StdDev)
	}
	v := bs.GroupVelocity(Γ+1, 0)
	want := h.GroupVelocity(mesh.At(Γ + 1).K)
	if !scalar.EqualWithinAbs(v[0], want[0], 1e-14) || !scalar.EqualWithinAbs(v[1], want[1], 1e-14) {
		t.Fatalf("group velocity %v, want %v", v, want)
	}
}

func TestBandsAnalyticMatchesGeneric(t *testing.T) {
	h, _ := NewTightBindingSquare(1, 0.25, -0.3)
	mesh, _ := NewMesh([]int{16, 16}, SquareZone(1), Centered)
	fast, err := ComputeBands(context.Background(), h, mesh, BandOptions{})
	require.NoError(t, err)
	generic, err := ComputeBands(context.Background(), h, mesh, BandOptions{Generic: true})
	require.NoError(t, err)
	for i := 0; i < mesh.Len(); i++ {
		if !scalar.EqualWithinAbs(fast.Energy(i, 0), generic.Energy(i, 0), 1e-12) {
			t.Fatalf("point %d: analytic %f, generic %f", i, fast.Energy(i, 0), generic.Energy(i, 0))
		}
		if cmplx.Abs(generic.Eigenvectors(i).At(0, 0)) < 1-1e-12 {
			t.Fatalf("point %d: eigenvector not normalized", i)
		}
	}
}

func TestBandsEigenDecomposition(t *testing.T) {
	for _, h := range testModels(t) {
		mesh := testMesh(t, h, 9)
		bs, err := ComputeBands(context.Background(), h, mesh, BandOptions{Generic: true, Workers: 3})
		require.NoError(t, err)
		require.Equal(t, h.Orbitals(), bs.Bands())
		n := h.Orbitals()
		for i := 0; i < bs.Len(); i++ {
			e := bs.Energies(i)
			if !sort.Float64sAreSorted(e) {
				t.Fatalf("%s point %d: energies not ascending %v", h.Name(), i, e)
			}
			u := bs.Eigenvectors(i)
			if dev := unitaryDeviation(u); dev > 1e-9 {
				t.Fatalf("%s point %d: |U^†U - I| = %g", h.Name(), i, dev)
			}
			H := Evaluate(h, mesh.At(i).K)
			for a := 0; a < n; a++ {
				for c := 0; c < n; c++ {
					var hu complex128
					for b := 0; b < n; b++ {
						hu += H.At(a, b) * u.At(b, c)
					}
					if cmplx.Abs(hu-complex(e[c], 0)*u.At(a, c)) > 1e-9 {
						t.Fatalf("%s point %d: H u_%d != E u_%d", h.Name(), i, c, c)
					}
				}
			}
		}
	}
}

func TestBandsDegenerateSubspace(t *testing.T) {
	// Without spin-orbit coupling every Kane-Mele level is spin degenerate.
	km, _ := NewKaneMele(1, 0, 0.2, 0)
	mesh := testMesh(t, km, 6)
	bs, err := ComputeBands(context.Background(), km, mesh, BandOptions{})
	require.NoError(t, err)
	for i := 0; i < bs.Len(); i++ {
		if dev := unitaryDeviation(bs.Eigenvectors(i)); dev > 1e-9 {
			t.Fatalf("point %d: degenerate eigenvectors not orthonormal (%g)", i, dev)
		}
	}
}

func TestBandsKaneMeleReducesToHaldane(t *testing.T) {
	km, _ := NewKaneMele(1, 0, 0.2, 0)
	h, _ := NewHaldane(1, 0, math.Pi/2, 0.2)
	mesh := testMesh(t, h, 12)
	ctx := context.Background()
	bsKM, err := ComputeBands(ctx, km, mesh, BandOptions{})
	require.NoError(t, err)
	bsH, err := ComputeBands(ctx, h, mesh, BandOptions{})
	require.NoError(t, err)
	for i := 0; i < mesh.Len(); i++ {
		e := bsH.Energies(i)
		want := []float64{e[0], e[0], e[1], e[1]}
		if !floats.EqualApprox(bsKM.Energies(i), want, 1e-9) {
			t.Fatalf("point %d: Kane-Mele %v, doubled Haldane %v", i, bsKM.Energies(i), want)
		}
	}
}

func TestBandsKramers(t *testing.T) {
	for _, λR := range []float64{0, 0.05, 0.3} {
		km, _ := NewKaneMele(1, 0.1, 0.2, λR)
		for _, k := range []Vec{{0.3, 0.4, 0}, {1.2, -2.1, 0}, {-0.7, 2.5, 0}, DiracK()} {
			path, err := NewPath(2, 1, k, k.Scale(-1))
			require.NoError(t, err)
			bs, err := ComputeBands(context.Background(), km, path, BandOptions{})
			require.NoError(t, err)
			if !floats.EqualApprox(bs.Energies(0), bs.Energies(1), 1e-9) {
				t.Fatalf("λR = %g: E(k) = %v, E(-k) = %v", λR, bs.Energies(0), bs.Energies(1))
			}
		}
	}
	// The Rashba term lifts the spin degeneracy away from the
	// time-reversal invariant momenta.
	km, _ := NewKaneMele(1, 0, 0, 0.3)
	path, err := NewPath(2, 1, DiracK(), DiracK().Scale(-1))
	require.NoError(t, err)
	bs, err := ComputeBands(context.Background(), km, path, BandOptions{})
	require.NoError(t, err)
	if e := bs.Energies(0); e[1]-e[0] < 1e-3 {
		t.Fatalf("spin degenerate bands %v with Rashba coupling", e)
	}
}

func TestBandsHaldaneDiracPoint(t *testing.T) {
	for _, p := range []struct{ t2, φ float64 }{{0, math.Pi / 2}, {0.1, 0}} {
		h, _ := NewHaldane(1, p.t2, p.φ, 0)
		mesh := testMesh(t, h, 30)
		bs, err := ComputeBands(context.Background(), h, mesh, BandOptions{})
		require.NoError(t, err)
		gap, at := bs.DirectGap(0)
		if gap > 1e-6 {
			t.Fatalf("t2 = %g, φ = %g: gap %g at %v", p.t2, p.φ, gap, mesh.At(at).K)
		}
	}
	// The complex hopping opens a gap 2|M - 3√3 t2| at K'.
	h, _ := NewHaldane(1, 0.1, math.Pi/2, 0.2)
	bs, err := ComputeBands(context.Background(), h, testMesh(t, h, 30), BandOptions{})
	require.NoError(t, err)
	if gap, _ := bs.DirectGap(0); !scalar.EqualWithinAbs(gap, 2*(3*math.Sqrt(3)*0.1-0.2), 1e-9) {
		t.Fatalf("gap = %f", gap)
	}
	if bs.Gap(0) <= 0 {
		t.Fatalf("indirect gap = %f", bs.Gap(0))
	}
}

func TestBandsErrors(t *testing.T) {
	ctx := context.Background()
	mesh, _ := NewMesh([]int{4, 4}, SquareZone(1), Uniform)
	bs, err := ComputeBands(ctx, nonHermitian{}, mesh, BandOptions{})
	require.ErrorIs(t, err, ErrDiagonalization)
	require.Nil(t, bs)
	require.Contains(t, err.Error(), "point")

	line, _ := NewMesh([]int{8}, Zone{Min: []float64{-math.Pi}, Max: []float64{math.Pi}}, Uniform)
	h, _ := NewTightBindingSquare(1, 0)
	_, err = ComputeBands(ctx, h, line, BandOptions{})
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBandsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, _ := NewHaldane(1, 0.1, 0.5, 0.1)
	bs, err := ComputeBands(ctx, h, testMesh(t, h, 40), BandOptions{})
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, bs)
}

func TestBandsDeterministic(t *testing.T) {
	h, _ := NewKaneMele(1, 0.1, 0.2, 0.05)
	mesh := testMesh(t, h, 20)
	one, err := ComputeBands(context.Background(), h, mesh, BandOptions{Workers: 1})
	require.NoError(t, err)
	many, err := ComputeBands(context.Background(), h, mesh, BandOptions{Workers: 7})
	require.NoError(t, err)
	for i := 0; i < mesh.Len(); i++ {
		if !floats.Equal(one.Energies(i), many.Energies(i)) {
			t.Fatalf("point %d differs between worker counts", i)
		}
	}
}
