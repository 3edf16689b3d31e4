package qtransport

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// defaultMeasure returns (2π)^-d, the density of k-states per unit volume.
// The weights of a normalized mesh sum to one instead of the zone volume,
// so the volume is folded back in.
func defaultMeasure(measure float64, m *Mesh) float64 {
	if measure > 0 {
		return measure
	}
	density := math.Pow(2*math.Pi, -float64(m.Dim()))
	if m.Normalized() {
		density *= m.Volume()
	}
	return density
}

// pointWork holds the eigenbasis velocity operators of one mesh point.
type pointWork struct {
	d    int
	vel  []*mat.CDense
	vw   *velocityWork
	cl   []int
	ends []int
}

func newPointWork(bs *BandStructure) *pointWork {
	d := bs.mesh.Dim()
	p := &pointWork{d: d, vel: make([]*mat.CDense, d), vw: newVelocityWork(bs.n), cl: make([]int, bs.n), ends: make([]int, bs.n)}
	for a := range p.vel {
		p.vel[a] = mat.NewCDense(bs.n, bs.n, nil)
	}
	return p
}

// load computes the velocity operators at point i.
func (p *pointWork) load(bs *BandStructure, i int) {
	for a, v := range p.vel {
		p.vw.velocity(v, bs, i, a)
	}
}

// group clusters the energies at point i, storing in ends[n] the end of the
// cluster starting at n. It returns the cluster start of every band.
func (p *pointWork) group(e []float64, tol float64) []int {
	cl := clusters(p.cl, e, tol)
	for n := len(e) - 1; n >= 0; n-- {
		if n == len(e)-1 || cl[n+1] != cl[n] {
			p.ends[cl[n]] = n + 1
		}
	}
	return cl
}

// clusterTrace returns Re Tr(P va P vb) for the projector P on bands [lo, hi).
func clusterTrace(va, vb *mat.CDense, lo, hi int) float64 {
	var t float64
	for n := lo; n < hi; n++ {
		for m := lo; m < hi; m++ {
			t += real(va.At(n, m) * vb.At(m, n))
		}
	}
	return t
}

// clusterEnergy returns the mean energy of bands [lo, hi).
func clusterEnergy(e []float64, lo, hi int) float64 {
	var s float64
	for _, v := range e[lo:hi] {
		s += v
	}
	return s / float64(hi-lo)
}
