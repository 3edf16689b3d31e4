package qtransport

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// Vec is a momentum (or real-space) vector. Only the first Dim() components
// of a model or mesh are meaningful; the rest are zero.
type Vec [3]float64

// Dot returns the inner product v·w.
func (v Vec) Dot(w Vec) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Add returns v+w.
func (v Vec) Add(w Vec) Vec {
	return Vec{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Scale returns s·v.
func (v Vec) Scale(s float64) Vec {
	return Vec{s * v[0], s * v[1], s * v[2]}
}

// Norm returns the Euclidean norm of v.
func (v Vec) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// finite returns whether none of the values is NaN or ±Inf.
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// zero sets every entry of m to 0.
func zero(m *mat.CDense) {
	raw := m.RawCMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j := range row {
			row[j] = 0
		}
	}
}

// setTwoBand writes d0·σ0 + dx·σx + dy·σy + dz·σz into the 2x2 block of m
// starting at (off, off).
func setTwoBand(m *mat.CDense, off int, d0, dx, dy, dz float64) {
	m.Set(off, off, complex(d0+dz, 0))
	m.Set(off, off+1, complex(dx, -dy))
	m.Set(off+1, off, complex(dx, dy))
	m.Set(off+1, off+1, complex(d0-dz, 0))
}

// hermitianDeviation returns max|m_ij - conj(m_ji)| and max|m_ij|.
func hermitianDeviation(m *mat.CDense) (dev, scale float64) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			a := m.At(i, j)
			if d := cmplx.Abs(a - cmplx.Conj(m.At(j, i))); d > dev {
				dev = d
			}
			if s := cmplx.Abs(a); s > scale {
				scale = s
			}
			if s := cmplx.Abs(m.At(j, i)); s > scale {
				scale = s
			}
		}
	}
	return dev, scale
}

// toEigenbasis computes dst = U^† op U with the eigenvectors U stored in
// columns. work must be n x n; it is overwritten.
func toEigenbasis(dst, op, u, work *mat.CDense) {
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, op.RawCMatrix(), u.RawCMatrix(), 0, work.RawCMatrix())
	cblas128.Gemm(blas.ConjTrans, blas.NoTrans, 1, u.RawCMatrix(), work.RawCMatrix(), 0, dst.RawCMatrix())
}

// complexDet returns the determinant of the n x n row-major matrix a using
// Gaussian elimination with partial pivoting. a is destroyed.
func complexDet(a []complex128, n int) complex128 {
	det := complex(1, 0)
	for c := 0; c < n; c++ {
		p := c
		for r := c + 1; r < n; r++ {
			if cmplx.Abs(a[r*n+c]) > cmplx.Abs(a[p*n+c]) {
				p = r
			}
		}
		if a[p*n+c] == 0 {
			return 0
		}
		if p != c {
			for j := 0; j < n; j++ {
				a[c*n+j], a[p*n+j] = a[p*n+j], a[c*n+j]
			}
			det = -det
		}
		piv := a[c*n+c]
		det *= piv
		for r := c + 1; r < n; r++ {
			f := a[r*n+c] / piv
			if f == 0 {
				continue
			}
			for j := c; j < n; j++ {
				a[r*n+j] -= f * a[c*n+j]
			}
		}
	}
	return det
}
