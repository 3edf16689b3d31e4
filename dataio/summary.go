package dataio

import (
	"io"

	"github.com/javahedi/qtransport"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Summary is the YAML record of one run.
type Summary struct {
	Model      string             `yaml:"model"`
	Parameters map[string]float64 `yaml:"parameters,omitempty"`
	Mesh       MeshSummary        `yaml:"mesh"`
	Bands      []BandRecord       `yaml:"bands"`
	Chern      *float64           `yaml:"chern,omitempty"`
	Boltzmann  *Transport         `yaml:"boltzmann,omitempty"`
	Kubo       *Transport         `yaml:"kubo,omitempty"`
	Duration   string             `yaml:"duration,omitempty"`
}

// MeshSummary describes the sampling of the zone.
type MeshSummary struct {
	Sampling   string  `yaml:"sampling"`
	Resolution []int   `yaml:"resolution,flow"`
	Points     int     `yaml:"points"`
	Volume     float64 `yaml:"volume"`
}

// BandRecord holds the statistics of one band and the gap above it.
type BandRecord struct {
	Index     int      `yaml:"index"`
	Min       float64  `yaml:"min"`
	Max       float64  `yaml:"max"`
	Mean      float64  `yaml:"mean"`
	StdDev    float64  `yaml:"stddev"`
	Gap       *float64 `yaml:"gap,omitempty"`
	DirectGap *float64 `yaml:"direct_gap,omitempty"`
}

// Transport holds the input point and the tensors of one solver run. Complex
// tensors are stored as separate real and imaginary parts.
type Transport struct {
	T       float64                `yaml:"temperature"`
	Mu      float64                `yaml:"mu"`
	Tau     float64                `yaml:"tau,omitempty"`
	Omega   float64                `yaml:"omega,omitempty"`
	Eta     float64                `yaml:"eta,omitempty"`
	Tensors map[string][][]float64 `yaml:"tensors"`
}

// NewSummary collects the band statistics of bs.
func NewSummary(bs *qtransport.BandStructure, params map[string]float64) *Summary {
	mesh := bs.Mesh()
	s := &Summary{
		Model:      bs.Model().Name(),
		Parameters: params,
		Mesh: MeshSummary{
			Sampling:   mesh.Sampling().String(),
			Resolution: mesh.Resolution(),
			Points:     mesh.Len(),
			Volume:     mesh.Volume(),
		},
	}
	for n := 0; n < bs.Bands(); n++ {
		st := bs.Summary(n)
		rec := BandRecord{Index: n, Min: st.Min, Max: st.Max, Mean: st.Mean, StdDev: st.StdDev}
		if n+1 < bs.Bands() {
			gap := bs.Gap(n)
			direct, _ := bs.DirectGap(n)
			rec.Gap, rec.DirectGap = &gap, &direct
		}
		s.Bands = append(s.Bands, rec)
	}
	return s
}

// SetChern records a Chern number.
func (s *Summary) SetChern(c float64) {
	s.Chern = &c
}

// SetBoltzmann records the tensors of a Boltzmann run.
func (s *Summary) SetBoltzmann(r *qtransport.BoltzmannResult) {
	s.Boltzmann = &Transport{T: r.T, Mu: r.Mu, Tau: r.Tau, Tensors: map[string][][]float64{
		"sigma": rows(r.Sigma),
		"alpha": rows(r.Alpha),
		"kappa": rows(r.Kappa),
	}}
}

// SetKubo records the tensors of a Kubo run.
func (s *Summary) SetKubo(r *qtransport.KuboResult) {
	re, im := complexRows(r.Sigma)
	s.Kubo = &Transport{T: r.T, Mu: r.Mu, Omega: r.Omega, Eta: r.Eta, Tensors: map[string][][]float64{
		"sigma_re": re,
		"sigma_im": im,
	}}
}

func rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func complexRows(m *mat.CDense) (re, im [][]float64) {
	r, c := m.Dims()
	re, im = make([][]float64, r), make([][]float64, r)
	for i := 0; i < r; i++ {
		re[i], im[i] = make([]float64, c), make([]float64, c)
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			re[i][j], im[i][j] = real(v), imag(v)
		}
	}
	return re, im
}

// WriteSummary encodes s as YAML.
func WriteSummary(w io.Writer, s *Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// ReadSummary decodes a YAML summary.
func ReadSummary(r io.Reader) (*Summary, error) {
	var s Summary
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
