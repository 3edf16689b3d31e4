package qtransport

import (
	"bytes"
	"context"
	"math"
	"testing"

	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestChernNumberHaldane(t *testing.T) {
	ctx := context.Background()
	chern := func(t2, φ, M float64) float64 {
		h, err := NewHaldane(1, t2, φ, M)
		require.NoError(t, err)
		C, err := ChernNumber(ctx, h, 24, 24, 1, BandOptions{})
		require.NoError(t, err)
		return C
	}
	C := chern(0.1, math.Pi/2, 0.2)
	if !scalar.EqualWithinAbs(math.Abs(C), 1, 1e-6) {
		t.Fatalf("C = %f", C)
	}
	if flipped := chern(0.1, -math.Pi/2, 0.2); !scalar.EqualWithinAbs(flipped, -C, 1e-6) {
		t.Fatalf("C(φ) = %f, C(-φ) = %f", C, flipped)
	}
	// A large mass wins over the complex hopping: |M| > 3√3 t2.
	if trivial := chern(0.1, math.Pi/2, 1); !scalar.EqualWithinAbs(trivial, 0, 1e-6) {
		t.Fatalf("trivial phase C = %f", trivial)
	}
}

func TestChernNumberKaneMele(t *testing.T) {
	ctx := context.Background()
	km, _ := NewKaneMele(1, 0.1, 0.2, 0)
	C, err := ChernNumber(ctx, km, 24, 24, 2, BandOptions{})
	require.NoError(t, err)
	if !scalar.EqualWithinAbs(C, 0, 1e-6) {
		t.Fatalf("total Chern number %f", C)
	}
	up, err := ChernNumber(ctx, km.Sector(true), 24, 24, 1, BandOptions{})
	require.NoError(t, err)
	down, err := ChernNumber(ctx, km.Sector(false), 24, 24, 1, BandOptions{})
	require.NoError(t, err)
	if !scalar.EqualWithinAbs(math.Abs(up), 1, 1e-6) || !scalar.EqualWithinAbs(up, -down, 1e-6) {
		t.Fatalf("spin Chern numbers %f, %f", up, down)
	}
	// The Rashba term keeps time reversal and the total at zero.
	rashba, _ := NewKaneMele(1, 0.1, 0.2, 0.05)
	C, err = ChernNumber(ctx, rashba, 24, 24, 2, BandOptions{})
	require.NoError(t, err)
	if !scalar.EqualWithinAbs(C, 0, 1e-6) {
		t.Fatalf("total Chern number with Rashba %f", C)
	}
}

func TestChernNumberErrors(t *testing.T) {
	ctx := context.Background()
	_, err := ChernNumber(ctx, nonHermitian{}, 8, 8, 1, BandOptions{})
	require.ErrorIs(t, err, ErrNoLattice)
	h, _ := NewHaldane(1, 0.1, 0.3, 0)
	_, err = ChernNumber(ctx, h, 8, 8, 3, BandOptions{})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = ChernNumber(ctx, h, 0, 8, 1, BandOptions{})
	require.ErrorIs(t, err, ErrInvalidResolution)
}

func TestBerryCurvature(t *testing.T) {
	ctx := context.Background()
	h, _ := NewHaldane(1, 0.1, math.Pi/2, 0.2)
	bs, err := ComputeBands(ctx, h, testMesh(t, h, 48), BandOptions{})
	require.NoError(t, err)
	Ω, err := BerryCurvature(ctx, bs, 0, BandOptions{})
	require.NoError(t, err)
	Ω1, err := BerryCurvature(ctx, bs, 1, BandOptions{})
	require.NoError(t, err)
	var flux float64
	for i, w := range Ω {
		flux += bs.Mesh().At(i).Weight * w
		if math.Abs(w+Ω1[i]) > 1e-9*math.Max(1, math.Abs(w)) {
			t.Fatalf("two-band curvatures do not cancel at point %d: %g, %g", i, w, Ω1[i])
		}
	}
	C, err := ChernNumber(ctx, h, 24, 24, 1, BandOptions{})
	require.NoError(t, err)
	if !scalar.EqualWithinAbs(flux/(2*math.Pi), C, 1e-4) {
		t.Fatalf("∫Ω/2π = %f, C = %f", flux/(2*math.Pi), C)
	}

	_, err = BerryCurvature(ctx, bs, 2, BandOptions{})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	var logs bytes.Buffer
	many, err := BerryCurvature(ctx, bs, 0, BandOptions{Workers: 4, Logger: kitlog.NewLogfmtLogger(&logs)})
	require.NoError(t, err)
	if !floats.Equal(Ω, many) {
		t.Fatal("Berry curvature depends on the worker count")
	}
	require.Contains(t, logs.String(), "subsys=geometry")
}

func TestPlaquetteCurvature(t *testing.T) {
	ctx := context.Background()
	h, _ := NewHaldane(1, 0.1, math.Pi/2, 0.2)
	const dk = 1e-4
	for _, k := range []Vec{{0.3, -0.8, 0}, DiracK().Scale(-1.02), {2, 1, 0}} {
		local, err := PlaquetteCurvature(h, k, dk, 1, BandOptions{})
		require.NoError(t, err)
		centre := k.Add(Vec{dk / 2, dk / 2, 0})
		path, err := NewPath(2, 1, centre, centre.Add(Vec{1, 0, 0}))
		require.NoError(t, err)
		bs, err := ComputeBands(ctx, h, path, BandOptions{})
		require.NoError(t, err)
		Ω, err := BerryCurvature(ctx, bs, 0, BandOptions{})
		require.NoError(t, err)
		if !scalar.EqualWithinAbsOrRel(local, Ω[0], 1e-6, 1e-3) {
			t.Fatalf("k = %v: plaquette %g, sum over states %g", k, local, Ω[0])
		}
	}
	_, err := PlaquetteCurvature(h, Vec{}, -1, 1, BandOptions{})
	require.ErrorIs(t, err, ErrInvalidResolution)
	_, err = PlaquetteCurvature(nonHermitian{}, Vec{0.2, 0.1, 0}, dk, 1, BandOptions{})
	require.ErrorIs(t, err, ErrDiagonalization)
	require.Contains(t, err.Error(), "corner 0")
}
