package qtransport

import (
	"context"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestKuboErrors(t *testing.T) {
	bs := squareBands(t, 4)
	ctx := context.Background()
	s := NewKuboSolver(KuboOptions{})
	_, err := s.Solve(ctx, bs, 0, 0.1, 0, -0.01)
	require.ErrorIs(t, err, ErrInvalidBroadening)
	_, err = s.Solve(ctx, bs, math.NaN(), 0.1, 0, 0.01)
	require.ErrorIs(t, err, ErrInvalidFrequency)
	_, err = s.Solve(ctx, bs, 0, -1, 0, 0.01)
	require.ErrorIs(t, err, ErrInvalidTemperature)
	_, err = NewKuboSolver(KuboOptions{RelaxationTime: -1}).Solve(ctx, bs, 0, 0.1, 0, 0.01)
	require.ErrorIs(t, err, ErrInvalidRelaxationTime)
	_, err = NewKuboSolver(KuboOptions{Intraband: true}).Solve(ctx, bs, 0, 0.1, 0, 0)
	require.ErrorIs(t, err, ErrDegenerateBand)
}

func TestKuboResonanceWithoutBroadening(t *testing.T) {
	// Two flat-shifted copies of the square band: every interband transition costs exactly 1.
	bs := squareBands(t, 16, 0, 1)
	ctx := context.Background()
	s := NewKuboSolver(KuboOptions{})
	_, err := s.Solve(ctx, bs, 1, 0, 0.5, 0)
	require.ErrorIs(t, err, ErrDegenerateBand)
	_, err = s.Solve(ctx, bs, 1, 0, 0.5, 0.05)
	require.NoError(t, err)
	// Off resonance a zero broadening is fine.
	_, err = s.Solve(ctx, bs, 0.3, 0, 0.5, 0)
	require.NoError(t, err)
}

func TestKuboDissipation(t *testing.T) {
	h, _ := NewHaldane(1, 0.1, math.Pi/2, 0.2)
	bs, err := ComputeBands(context.Background(), h, testMesh(t, h, 24), BandOptions{})
	require.NoError(t, err)
	s := NewKuboSolver(KuboOptions{})
	for _, ω := range []float64{0, 0.5, 0.7, 1.5, 3, 6} {
		res, err := s.Solve(context.Background(), bs, ω, 0.05, 0, 0.05)
		require.NoError(t, err)
		for a := 0; a < 2; a++ {
			if re := real(res.Sigma.At(a, a)); re < -1e-14 {
				t.Fatalf("ω = %g: Re σ_%d%d = %g < 0", ω, a, a, re)
			}
		}
	}
}

func TestKuboHallQuantization(t *testing.T) {
	h, _ := NewHaldane(1, 0.1, math.Pi/2, 0.2)
	ctx := context.Background()
	bs, err := ComputeBands(ctx, h, testMesh(t, h, 60), BandOptions{})
	require.NoError(t, err)
	res, err := NewKuboSolver(KuboOptions{}).Solve(ctx, bs, 0, 0, 0, 0)
	require.NoError(t, err)
	C, err := ChernNumber(ctx, h, 30, 30, 1, BandOptions{})
	require.NoError(t, err)
	if !scalar.EqualWithinAbs(math.Abs(C), 1, 1e-6) {
		t.Fatalf("C = %f", C)
	}
	σxy := res.Sigma.At(0, 1)
	if !scalar.EqualWithinAbs(2*math.Pi*real(σxy), -C, 1e-3) || math.Abs(imag(σxy)) > 1e-9 {
		t.Fatalf("2π σxy = %v, C = %f", 2*math.Pi*σxy, C)
	}
	if cmplx.Abs(res.Sigma.At(1, 0)+σxy) > 1e-9 {
		t.Fatalf("σyx = %v, σxy = %v", res.Sigma.At(1, 0), σxy)
	}
	if !scalar.EqualWithinAbs(real(res.Hall()), real(σxy), 1e-12) {
		t.Fatalf("Hall() = %v", res.Hall())
	}
}

func TestKuboDrudeMatchesBoltzmann(t *testing.T) {
	ctx := context.Background()
	const τ, T, μ = 5.0, 0.08, -0.7
	for _, bs := range []*BandStructure{squareBands(t, 40), squareBands(t, 24, 0, 0.3)} {
		boltz, err := NewBoltzmannSolver(BoltzmannOptions{}).Solve(ctx, bs, T, μ, τ)
		require.NoError(t, err)
		kubo, err := NewKuboSolver(KuboOptions{Intraband: true, RelaxationTime: τ}).Solve(ctx, bs, 0, T, μ, 0.01)
		require.NoError(t, err)
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				drude := kubo.Intraband.At(a, b)
				want := boltz.Sigma.At(a, b)
				if !scalar.EqualWithinAbsOrRel(real(drude), want, 1e-12, 1e-9) || math.Abs(imag(drude)) > 1e-12 {
					t.Fatalf("σ_%d%d: Drude %v, Boltzmann %g", a, b, drude, want)
				}
			}
		}
		// The square lattice bands carry no interband current.
		if cmplx.Abs(kubo.Interband.At(0, 0)) > 1e-12 {
			t.Fatalf("interband σxx = %v", kubo.Interband.At(0, 0))
		}
	}
}

func TestKuboDegenerateBands(t *testing.T) {
	km, _ := NewKaneMele(1, 0, 0.2, 0)
	h, _ := NewHaldane(1, 0, math.Pi/2, 0.2)
	mesh := testMesh(t, h, 18)
	ctx := context.Background()
	bsKM, err := ComputeBands(ctx, km, mesh, BandOptions{})
	require.NoError(t, err)
	bsH, err := ComputeBands(ctx, h, mesh, BandOptions{})
	require.NoError(t, err)
	s := NewKuboSolver(KuboOptions{Intraband: true})
	rKM, err := s.Solve(ctx, bsKM, 1.1, 0.1, 0.3, 0.05)
	require.NoError(t, err)
	rH, err := s.Solve(ctx, bsH, 1.1, 0.1, 0.3, 0.05)
	require.NoError(t, err)
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			got, want := rKM.Sigma.At(a, b), 2*rH.Sigma.At(a, b)
			if cmplx.Abs(got-want) > 1e-9*math.Max(1, cmplx.Abs(want)) {
				t.Fatalf("σ_%d%d: Kane-Mele %v, twice Haldane %v", a, b, got, want)
			}
		}
	}
}

func TestKuboCancellation(t *testing.T) {
	bs := squareBands(t, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewKuboSolver(KuboOptions{}).Solve(ctx, bs, 0.5, 0.1, 0, 0.05)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, res)
}

func TestKuboNormalizedMesh(t *testing.T) {
	ctx := context.Background()
	h, _ := NewHaldane(1, 0.1, math.Pi/2, 0.2)
	zone, err := LatticeZone(h)
	require.NoError(t, err)
	s := NewKuboSolver(KuboOptions{Intraband: true, RelaxationTime: 2})
	var res [2]*KuboResult
	for i, opts := range [][]MeshOption{nil, {Normalized()}} {
		mesh, err := NewMesh([]int{24, 24}, zone, Uniform, opts...)
		require.NoError(t, err)
		bs, err := ComputeBands(ctx, h, mesh, BandOptions{})
		require.NoError(t, err)
		if res[i], err = s.Solve(ctx, bs, 0.8, 0.1, 0.9, 0.05); err != nil {
			t.Fatal(err)
		}
	}
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			plain, unit := res[0].Sigma.At(a, b), res[1].Sigma.At(a, b)
			if cmplx.Abs(plain-unit) > 1e-9*cmplx.Abs(plain)+1e-15 {
				t.Fatalf("σ_%d%d: plain mesh %v, normalized mesh %v", a, b, plain, unit)
			}
		}
	}
	if real(res[1].Intraband.At(0, 0)) <= 0 {
		t.Fatalf("Drude σxx = %v", res[1].Intraband.At(0, 0))
	}
}
