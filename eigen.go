package qtransport

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// candidateTol is the squared residual norm below which a complex candidate
// vector is considered to lie in the span of the vectors already accepted.
const candidateTol = 1e-6

// hermitianEigen diagonalizes complex Hermitian matrices through the real
// symmetric embedding
//
//	H = A + iB  ->  M = [[A, -B], [B, A]]
//
// where every eigenvalue of H appears twice in M and each eigenvector
// x + iy of H maps to (x, y) and (-y, x). A value is not safe for concurrent use.
type hermitianEigen struct {
	n      int
	tol    float64
	sym    *mat.SymDense
	eig    mat.EigenSym
	vecs   mat.Dense
	vals   []float64
	cand   [][]complex128
	picked []bool
}

func newHermitianEigen(n int, degeneracyTol float64) *hermitianEigen {
	cand := make([][]complex128, 2*n)
	for i := range cand {
		cand[i] = make([]complex128, n)
	}
	return &hermitianEigen{
		n:      n,
		tol:    degeneracyTol,
		sym:    mat.NewSymDense(2*n, nil),
		vals:   make([]float64, 2*n),
		cand:   cand,
		picked: make([]bool, 2*n),
	}
}

// factorize stores the ascending eigenvalues of h in values and the
// corresponding orthonormal eigenvectors in the columns of vectors.
func (e *hermitianEigen) factorize(h *mat.CDense, values []float64, vectors *mat.CDense) error {
	n := e.n
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			hij, hji := h.At(i, j), h.At(j, i)
			re := (real(hij) + real(hji)) / 2
			im := (imag(hij) - imag(hji)) / 2
			e.sym.SetSym(i, j, re)
			e.sym.SetSym(n+i, n+j, re)
			e.sym.SetSym(i, n+j, -im)
			e.sym.SetSym(j, n+i, im)
		}
	}
	if ok := e.eig.Factorize(e.sym, true); !ok {
		return fmt.Errorf("symmetric eigen decomposition did not converge: %w", ErrDiagonalization)
	}
	e.eig.Values(e.vals)
	e.eig.VectorsTo(&e.vecs)
	for j := 0; j < 2*n; j++ {
		for i := 0; i < n; i++ {
			e.cand[j][i] = complex(e.vecs.At(i, j), e.vecs.At(n+i, j))
		}
		e.picked[j] = false
	}

	col := 0
	for lo := 0; lo < 2*n; {
		hi := lo + 1
		for hi < 2*n && degenerate(e.vals[hi-1], e.vals[hi], e.tol) {
			hi++
		}
		for r := 0; ; r++ {
			best, bestNorm := -1, candidateTol
			for j := lo; j < hi; j++ {
				if e.picked[j] {
					continue
				}
				orthogonalize(e.cand[j], vectors, col)
				if nrm := norm2(e.cand[j]); nrm > bestNorm {
					best, bestNorm = j, nrm
				}
			}
			if best < 0 {
				break
			}
			if col == n {
				return fmt.Errorf("recovered more than %d eigenvectors: %w", n, ErrDiagonalization)
			}
			// A second pass restores orthogonality lost to cancellation.
			q := e.cand[best]
			orthogonalize(q, vectors, col)
			s := complex(1/math.Sqrt(norm2(q)), 0)
			for i := range q {
				q[i] *= s
			}
			e.picked[best] = true
			for i, qi := range q {
				vectors.Set(i, col, qi)
			}
			// Consecutive real eigenvalues of a cluster pair up.
			p := min(lo+2*r+1, hi-1)
			values[col] = (e.vals[min(lo+2*r, p)] + e.vals[p]) / 2
			col++
		}
		lo = hi
	}
	if col != n {
		return fmt.Errorf("recovered %d of %d eigenvectors: %w", col, n, ErrDiagonalization)
	}
	return nil
}

// orthogonalize removes from v its components along the first cols columns
// of vectors. Candidates from neighbouring clusters overlap at about eps/gap,
// so every earlier column is projected out, not only those of the cluster.
func orthogonalize(v []complex128, vectors *mat.CDense, cols int) {
	for c := 0; c < cols; c++ {
		var dot complex128
		for i, vi := range v {
			q := vectors.At(i, c)
			dot += complex(real(q), -imag(q)) * vi
		}
		for i := range v {
			v[i] -= dot * vectors.At(i, c)
		}
	}
}

// degenerate returns whether two ascending eigenvalues belong to one cluster.
func degenerate(lo, hi, tol float64) bool {
	return hi-lo <= tol*math.Max(1, math.Max(math.Abs(lo), math.Abs(hi)))
}

func norm2(v []complex128) float64 {
	var s float64
	for _, c := range v {
		s += real(c)*real(c) + imag(c)*imag(c)
	}
	return s
}

// clusters writes into dst, for each ascending energy, the index of the first
// band of its degenerate cluster.
func clusters(dst []int, energies []float64, tol float64) []int {
	dst = dst[:len(energies)]
	for n := range energies {
		if n > 0 && degenerate(energies[n-1], energies[n], tol) {
			dst[n] = dst[n-1]
		} else {
			dst[n] = n
		}
	}
	return dst
}
