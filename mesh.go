package qtransport

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
)

// Sampling defines how a mesh places its points along each axis.
type Sampling uint8

const (
	// Uniform places n points per axis at lo + j(hi-lo)/n. The upper edge is
	// excluded so a periodic zone is covered without duplicates.
	Uniform Sampling = iota + 1
	// Centered places n points per axis at the centre of each of n cells.
	Centered
	// GaussLegendre uses the Gauss-Legendre nodes and weights of order n per axis.
	GaussLegendre
	// Path is the sampling of a band path through a list of vertices.
	Path
)

func (s Sampling) String() string {
	switch s {
	case Uniform:
		return "uniform"
	case Centered:
		return "centered"
	case GaussLegendre:
		return "gauss-legendre"
	case Path:
		return "path"
	}
	return fmt.Sprintf("Sampling(%d)", uint8(s))
}

// SamplingFromString returns the sampling scheme named s.
func SamplingFromString(s string) (Sampling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uniform", "":
		return Uniform, nil
	case "centered", "centred", "midpoint":
		return Centered, nil
	case "gauss-legendre", "gausslegendre", "legendre":
		return GaussLegendre, nil
	case "path":
		return Path, nil
	}
	return 0, fmt.Errorf("unknown sampling %q: %w", s, ErrInvalidResolution)
}

// KPoint is a sampled momentum and its integration weight.
type KPoint struct {
	K      Vec
	Weight float64
}

// Zone is the box [Min, Max) in fractional coordinates, mapped to momentum
// space by k = Σ u_i Basis[i]. A nil Basis is the identity.
type Zone struct {
	Min, Max []float64
	Basis    []Vec
}

// Dim returns the dimension of the zone.
func (z Zone) Dim() int {
	return len(z.Min)
}

// SquareZone returns the first Brillouin zone [-π/a, π/a)² of a square lattice.
func SquareZone(a float64) Zone {
	return Zone{Min: []float64{-math.Pi / a, -math.Pi / a}, Max: []float64{math.Pi / a, math.Pi / a}}
}

// CellZone returns the reciprocal unit cell spanned by the provided vectors.
func CellZone(basis ...Vec) Zone {
	z := Zone{Min: make([]float64, len(basis)), Max: make([]float64, len(basis)), Basis: basis}
	for i := range z.Max {
		z.Max[i] = 1
	}
	return z
}

// LatticeZone returns the reciprocal unit cell of a model which implements Lattice.
func LatticeZone(h Hamiltonian) (Zone, error) {
	l, ok := h.(Lattice)
	if !ok {
		return Zone{}, fmt.Errorf("%s: %w", h.Name(), ErrNoLattice)
	}
	return CellZone(l.ReciprocalVectors()...), nil
}

// MeshOption configures a mesh.
type MeshOption func(*Mesh)

// Normalized rescales the weights so that they sum to one.
func Normalized() MeshOption {
	return func(m *Mesh) {
		m.normalized = true
	}
}

// Mesh is an ordered, immutable sampling of a zone. Points are ordered with
// the last axis varying fastest.
type Mesh struct {
	dim        int
	res        []int
	zone       Zone
	sampling   Sampling
	points     []KPoint
	volume     float64
	normalized bool
	arc        []float64
}

// NewMesh samples the zone with the provided resolution per axis.
func NewMesh(resolution []int, zone Zone, sampling Sampling, opts ...MeshOption) (*Mesh, error) {
	d := len(resolution)
	if d < 1 || d > 3 {
		return nil, fmt.Errorf("mesh dimension %d not in [1, 3]: %w", d, ErrInvalidResolution)
	}
	for axis, n := range resolution {
		if n < 1 {
			return nil, fmt.Errorf("axis %d resolution %d: %w", axis, n, ErrInvalidResolution)
		}
	}
	if len(zone.Min) != d || len(zone.Max) != d {
		return nil, fmt.Errorf("zone of dimension %d/%d for a %d-dimensional mesh: %w", len(zone.Min), len(zone.Max), d, ErrInvalidZone)
	}
	for axis := 0; axis < d; axis++ {
		if !finite(zone.Min[axis], zone.Max[axis]) || zone.Max[axis] <= zone.Min[axis] {
			return nil, fmt.Errorf("axis %d bounds [%g, %g): %w", axis, zone.Min[axis], zone.Max[axis], ErrInvalidZone)
		}
	}
	jac, err := jacobian(zone, d)
	if err != nil {
		return nil, err
	}

	m := &Mesh{dim: d, res: append([]int(nil), resolution...), zone: zone, sampling: sampling}
	for _, opt := range opts {
		opt(m)
	}
	m.volume = jac
	nodes := make([][]float64, d)
	weights := make([][]float64, d)
	for axis := 0; axis < d; axis++ {
		lo, hi, n := zone.Min[axis], zone.Max[axis], resolution[axis]
		m.volume *= hi - lo
		nodes[axis] = make([]float64, n)
		weights[axis] = make([]float64, n)
		switch sampling {
		case Uniform, Centered:
			h := (hi - lo) / float64(n)
			shift := 0.0
			if sampling == Centered {
				shift = 0.5
			}
			for j := 0; j < n; j++ {
				nodes[axis][j] = lo + (float64(j)+shift)*h
				weights[axis][j] = h
			}
		case GaussLegendre:
			quad.Legendre{}.FixedLocations(nodes[axis], weights[axis], lo, hi)
		default:
			return nil, fmt.Errorf("sampling %s on a grid: %w", sampling, ErrInvalidResolution)
		}
	}

	count := 1
	for _, n := range resolution {
		count *= n
	}
	m.points = make([]KPoint, count)
	idx := make([]int, d)
	for i := 0; i < count; i++ {
		var u Vec
		w := jac
		for axis := 0; axis < d; axis++ {
			u[axis] = nodes[axis][idx[axis]]
			w *= weights[axis][idx[axis]]
		}
		if m.normalized {
			w /= m.volume
		}
		m.points[i] = KPoint{K: zone.toMomentum(u, d), Weight: w}
		// Increment the multi-index, last axis fastest.
		for axis := d - 1; axis >= 0; axis-- {
			idx[axis]++
			if idx[axis] < resolution[axis] {
				break
			}
			idx[axis] = 0
		}
	}
	return m, nil
}

// jacobian returns |det B| for the zone basis, or 1 for the identity.
func jacobian(zone Zone, d int) (float64, error) {
	if zone.Basis == nil {
		return 1, nil
	}
	if len(zone.Basis) != d {
		return 0, fmt.Errorf("%d basis vectors for dimension %d: %w", len(zone.Basis), d, ErrInvalidZone)
	}
	B := mat.NewDense(d, d, nil)
	for j, b := range zone.Basis {
		for i := 0; i < d; i++ {
			B.Set(i, j, b[i])
		}
	}
	det := math.Abs(mat.Det(B))
	if det < 1e-12 || !finite(det) {
		return 0, fmt.Errorf("basis determinant %g: %w", det, ErrInvalidZone)
	}
	return det, nil
}

// toMomentum maps fractional coordinates to momentum space.
func (z Zone) toMomentum(u Vec, d int) Vec {
	if z.Basis == nil {
		return u
	}
	var k Vec
	for i := 0; i < d; i++ {
		k = k.Add(z.Basis[i].Scale(u[i]))
	}
	return k
}

// NewPath returns a dim-dimensional band path through the vertices with
// perSegment points per segment, plus the final vertex. Weights are the
// trapezoidal arc-length weights, so they sum to the path length.
func NewPath(dim, perSegment int, vertices ...Vec) (*Mesh, error) {
	if dim < 1 || dim > 3 {
		return nil, fmt.Errorf("path dimension %d not in [1, 3]: %w", dim, ErrInvalidResolution)
	}
	if perSegment < 1 || len(vertices) < 2 {
		return nil, fmt.Errorf("%d vertices with %d points per segment: %w", len(vertices), perSegment, ErrInvalidResolution)
	}
	count := (len(vertices)-1)*perSegment + 1
	m := &Mesh{dim: dim, res: []int{count}, sampling: Path, points: make([]KPoint, count), arc: make([]float64, count)}
	i := 0
	for s := 0; s < len(vertices)-1; s++ {
		from, to := vertices[s], vertices[s+1]
		for j := 0; j < perSegment; j++ {
			t := float64(j) / float64(perSegment)
			m.points[i].K = from.Add(to.Add(from.Scale(-1)).Scale(t))
			i++
		}
	}
	m.points[count-1].K = vertices[len(vertices)-1]
	for i := 1; i < count; i++ {
		m.arc[i] = m.arc[i-1] + m.points[i].K.Add(m.points[i-1].K.Scale(-1)).Norm()
	}
	m.volume = m.arc[count-1]
	if m.volume == 0 {
		return nil, fmt.Errorf("path has zero length: %w", ErrInvalidZone)
	}
	for i := 0; i < count; i++ {
		lo, hi := max(i-1, 0), min(i+1, count-1)
		m.points[i].Weight = (m.arc[hi] - m.arc[lo]) / 2
	}
	return m, nil
}

// Len returns the number of points.
func (m *Mesh) Len() int {
	return len(m.points)
}

// At returns the i-th point.
func (m *Mesh) At(i int) KPoint {
	return m.points[i]
}

// Points returns a copy of all points, in order.
func (m *Mesh) Points() []KPoint {
	return append([]KPoint(nil), m.points...)
}

// Dim returns the dimension of the mesh.
func (m *Mesh) Dim() int {
	return m.dim
}

// Resolution returns the number of samples per axis.
func (m *Mesh) Resolution() []int {
	return append([]int(nil), m.res...)
}

// Sampling returns the sampling scheme.
func (m *Mesh) Sampling() Sampling {
	return m.sampling
}

// Volume returns the measure of the sampled zone (the length of a path).
func (m *Mesh) Volume() float64 {
	return m.volume
}

// Normalized returns whether the weights were rescaled to sum to one.
func (m *Mesh) Normalized() bool {
	return m.normalized
}

// TotalWeight returns the sum of all the weights.
func (m *Mesh) TotalWeight() float64 {
	var sum float64
	for _, p := range m.points {
		sum += p.Weight
	}
	return sum
}

// Arc returns the cumulative path length at point i of a band path, or zero
// for any other mesh.
func (m *Mesh) Arc(i int) float64 {
	if m.arc == nil {
		return 0
	}
	return m.arc[i]
}

// Neighbor returns the index of the point step cells away from i along the
// provided axis, wrapping around periodically. It is only defined for
// Uniform and Centered grids.
func (m *Mesh) Neighbor(i, axis, step int) (int, bool) {
	if (m.sampling != Uniform && m.sampling != Centered) || axis < 0 || axis >= len(m.res) {
		return 0, false
	}
	stride := 1
	for a := len(m.res) - 1; a > axis; a-- {
		stride *= m.res[a]
	}
	n := m.res[axis]
	j := (i / stride) % n
	nj := ((j+step)%n + n) % n
	return i + (nj-j)*stride, true
}
