package dataio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/javahedi/qtransport"
	"gonum.org/v1/gonum/mat"
)

// ExportConfig configures where exported files go.
type ExportConfig struct {
	Dir       string // Output directory, created if missing
	Filename  string // Prefix of every file of this run
	Timestamp bool   // Append the creation time to the file names
}

// IsUseless returns whether this config would not lead to any file.
func (c ExportConfig) IsUseless() bool {
	return c.Filename == ""
}

// Create returns a new file named <dir>/<kind>-<filename>[-stamp].<ext>.
// The caller must close it.
func (c ExportConfig) Create(kind, ext string) (*os.File, error) {
	if c.IsUseless() {
		return nil, fmt.Errorf("no file name for the %s export", kind)
	}
	dir := c.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s-%s", kind, c.Filename)
	if c.Timestamp {
		t := time.Now().UTC()
		name += fmt.Sprintf("-%d-%02d-%02dT%02d.%02d.%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return os.Create(filepath.Join(dir, name+"."+ext))
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// header writes the comment lines which precede every CSV export.
func header(w io.Writer, lines ...string) error {
	if _, err := fmt.Fprintf(w, "# Creation date (UTC): %s\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "# %s\n", l); err != nil {
			return err
		}
	}
	return nil
}

// WriteBands writes one CSV record per mesh point: index, kx, ky, kz, weight,
// arc length, then the energy of every band in ascending order.
func WriteBands(w io.Writer, bs *qtransport.BandStructure) error {
	mesh := bs.Mesh()
	if err := header(w,
		fmt.Sprintf("Model: %s, %d bands", bs.Model().Name(), bs.Bands()),
		fmt.Sprintf("Mesh: %d points, %s sampling, resolution %v", mesh.Len(), mesh.Sampling(), mesh.Resolution()),
	); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cols := []string{"index", "kx", "ky", "kz", "weight", "arc"}
	for n := 0; n < bs.Bands(); n++ {
		cols = append(cols, fmt.Sprintf("E%d", n))
	}
	if err := cw.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for i := 0; i < bs.Len(); i++ {
		p := mesh.At(i)
		record[0] = strconv.Itoa(i)
		for a := 0; a < 3; a++ {
			record[1+a] = format(p.K[a])
		}
		record[4] = format(p.Weight)
		record[5] = format(mesh.Arc(i))
		for n, e := range bs.Energies(i) {
			record[6+n] = format(e)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDOS writes the (energy, density) samples of d.
func WriteDOS(w io.Writer, d *qtransport.DOS) error {
	win := d.Window()
	if err := header(w, fmt.Sprintf("Window: [%g, %g], %d bins, broadening %g", win.Min, win.Max, d.Len(), d.Broadening())); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"energy", "density"}); err != nil {
		return err
	}
	for i := 0; i < d.Len(); i++ {
		e, ρ := d.At(i)
		if err := cw.Write([]string{format(e), format(ρ)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTensor writes the named real tensors as rows of name, a, b, value.
func WriteTensor(w io.Writer, tensors map[string]mat.Matrix, order ...string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"tensor", "a", "b", "value"}); err != nil {
		return err
	}
	for _, name := range order {
		m, ok := tensors[name]
		if !ok {
			return fmt.Errorf("no tensor %q", name)
		}
		r, c := m.Dims()
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				if err := cw.Write([]string{name, strconv.Itoa(a), strconv.Itoa(b), format(m.At(a, b))}); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ConductivityRecord is one row of a frequency resolved conductivity.
type ConductivityRecord struct {
	Omega float64
	Sigma *mat.CDense
}

// WriteConductivity writes Re and Im of every σ_ab for each frequency.
func WriteConductivity(w io.Writer, records []ConductivityRecord) error {
	cw := csv.NewWriter(w)
	cols := []string{"omega"}
	var d int
	if len(records) > 0 {
		d, _ = records[0].Sigma.Dims()
	}
	axes := "xyz"
	for a := 0; a < d; a++ {
		for b := 0; b < d; b++ {
			ab := axes[a:a+1] + axes[b:b+1]
			cols = append(cols, "re_"+ab, "im_"+ab)
		}
	}
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, rec := range records {
		if r, _ := rec.Sigma.Dims(); r != d {
			return fmt.Errorf("ω = %g: %d x %d tensor after %d x %d ones", rec.Omega, r, r, d, d)
		}
		row := []string{format(rec.Omega)}
		for a := 0; a < d; a++ {
			for b := 0; b < d; b++ {
				v := rec.Sigma.At(a, b)
				row = append(row, format(real(v)), format(imag(v)))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable reads a CSV export back, skipping the comment lines, and returns
// the column names and the numeric records.
func ReadTable(r io.Reader) ([]string, [][]float64, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cols, err := cr.Read()
	if err != nil {
		return nil, nil, err
	}
	var rows [][]float64
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make([]float64, len(record))
		for i, s := range record {
			if row[i], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, nil, fmt.Errorf("record %d, column %s: %w", len(rows), cols[i], err)
			}
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}
