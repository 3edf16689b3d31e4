package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/javahedi/qtransport"
	"github.com/javahedi/qtransport/dataio"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// scenario is a validated run description read from a TOML file.
type scenario struct {
	Name   string
	Model  string
	Params map[string]float64
	model  qtransport.Hamiltonian

	Resolution []int
	Sampling   qtransport.Sampling
	Zone       string // "lattice" or "square"
	Normalized bool
	Path       [][]float64
	PerSegment int

	Workers       int
	DegeneracyTol float64

	DOS       *dosConfig
	Transport *transportConfig
	Kubo      *kuboConfig
	Chern     *chernConfig

	Export dataio.ExportConfig
}

type dosConfig struct {
	Window     qtransport.Window
	Bins       int
	Broadening float64
	Kernel     qtransport.Kernel
	Projection []int
}

type transportConfig struct {
	Temperature float64
	Mu          float64
	Tau         float64
	Smearing    float64
	Thermal     qtransport.Thermal
}

type kuboConfig struct {
	Omegas         []float64
	Eta            float64
	Intraband      bool
	RelaxationTime float64
}

type chernConfig struct {
	Grid     []int
	Occupied int
}

// loadScenario reads and validates the scenario at path.
func loadScenario(path string) (*scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("mesh.sampling", "uniform")
	v.SetDefault("mesh.zone", "lattice")
	v.SetDefault("mesh.per_segment", 50)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc, err := scenarioFrom(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if sc.Export.Filename == "" {
		sc.Export.Filename = sc.Name
	}
	return sc, nil
}

func scenarioFrom(v *viper.Viper) (*scenario, error) {
	sc := &scenario{
		Name:          v.GetString("name"),
		Model:         v.GetString("model.name"),
		Zone:          strings.ToLower(v.GetString("mesh.zone")),
		Normalized:    v.GetBool("mesh.normalized"),
		PerSegment:    v.GetInt("mesh.per_segment"),
		Workers:       v.GetInt("workers"),
		DegeneracyTol: v.GetFloat64("degeneracy_tol"),
		Export: dataio.ExportConfig{
			Dir:       v.GetString("output.dir"),
			Filename:  v.GetString("output.filename"),
			Timestamp: v.GetBool("output.timestamp"),
		},
	}
	var err error
	if sc.Params, err = floatMap(v.Get("model.params")); err != nil {
		return nil, fmt.Errorf("model.params: %w", err)
	}
	if sc.model, err = qtransport.NewModel(sc.Model, sc.Params); err != nil {
		return nil, err
	}

	if sc.Sampling, err = qtransport.SamplingFromString(v.GetString("mesh.sampling")); err != nil {
		return nil, err
	}
	if sc.Sampling == qtransport.Path {
		raw, err := cast.ToSliceE(v.Get("mesh.vertices"))
		if err != nil {
			return nil, fmt.Errorf("mesh.vertices: %w", err)
		}
		for i, vertex := range raw {
			k, err := floatSlice(vertex)
			if err != nil || len(k) == 0 || len(k) > 3 {
				return nil, fmt.Errorf("mesh.vertices[%d] = %v: want 1 to 3 numbers", i, vertex)
			}
			sc.Path = append(sc.Path, k)
		}
	} else {
		if sc.Resolution, err = cast.ToIntSliceE(v.Get("mesh.resolution")); err != nil || len(sc.Resolution) == 0 {
			return nil, fmt.Errorf("mesh.resolution must list the points per axis")
		}
		if sc.Zone != "lattice" && sc.Zone != "square" {
			return nil, fmt.Errorf("mesh.zone %q: want lattice or square", sc.Zone)
		}
	}

	if v.IsSet("dos") {
		d := &dosConfig{
			Window:     qtransport.Window{Min: v.GetFloat64("dos.emin"), Max: v.GetFloat64("dos.emax")},
			Bins:       cast.ToInt(or(v, "dos.bins", 400)),
			Broadening: cast.ToFloat64(or(v, "dos.broadening", 0.05)),
		}
		if w := d.Window; !(w.Max > w.Min) || math.IsInf(w.Min, 0) || math.IsInf(w.Max, 0) {
			return nil, fmt.Errorf("dos window [%g, %g] needs finite emin < emax: %w", w.Min, w.Max, qtransport.ErrInvalidWindow)
		}
		if d.Bins < 1 {
			return nil, fmt.Errorf("dos.bins = %d: %w", d.Bins, qtransport.ErrInvalidResolution)
		}
		if !(d.Broadening > 0) || math.IsInf(d.Broadening, 0) {
			return nil, fmt.Errorf("dos.broadening = %g: %w", d.Broadening, qtransport.ErrInvalidBroadening)
		}
		if d.Kernel, err = qtransport.KernelFromString(v.GetString("dos.kernel")); err != nil {
			return nil, err
		}
		if v.IsSet("dos.projection") {
			if d.Projection, err = cast.ToIntSliceE(v.Get("dos.projection")); err != nil {
				return nil, fmt.Errorf("dos.projection: %w", err)
			}
		}
		sc.DOS = d
	}
	if v.IsSet("transport") {
		tr := &transportConfig{
			Temperature: v.GetFloat64("transport.temperature"),
			Mu:          v.GetFloat64("transport.mu"),
			Tau:         v.GetFloat64("transport.tau"),
			Smearing:    v.GetFloat64("transport.smearing"),
			Thermal: qtransport.Thermal{
				Kelvin:      v.GetBool("transport.kelvin"),
				EnergyScale: v.GetFloat64("transport.energy_scale"),
			},
		}
		if tr.Temperature < 0 || math.IsNaN(tr.Temperature) {
			return nil, fmt.Errorf("transport.temperature = %g: %w", tr.Temperature, qtransport.ErrInvalidTemperature)
		}
		if tr.Tau < 0 {
			return nil, fmt.Errorf("transport.tau = %g: %w", tr.Tau, qtransport.ErrInvalidRelaxationTime)
		}
		sc.Transport = tr
	}
	if v.IsSet("kubo") {
		k := &kuboConfig{
			Eta:            cast.ToFloat64(or(v, "kubo.eta", 0.05)),
			Intraband:      v.GetBool("kubo.intraband"),
			RelaxationTime: v.GetFloat64("kubo.relaxation_time"),
		}
		if k.Omegas, err = floatSlice(v.Get("kubo.omega")); err != nil {
			return nil, fmt.Errorf("kubo.omega: %w", err)
		}
		if len(k.Omegas) == 0 {
			k.Omegas = []float64{0}
		}
		if k.Eta < 0 {
			return nil, fmt.Errorf("kubo.eta = %g: %w", k.Eta, qtransport.ErrInvalidBroadening)
		}
		if sc.Transport == nil {
			return nil, fmt.Errorf("kubo needs the transport temperature and chemical potential")
		}
		sc.Kubo = k
	}
	if v.IsSet("chern") {
		c := &chernConfig{Occupied: cast.ToInt(or(v, "chern.occupied", 1))}
		if c.Grid, err = cast.ToIntSliceE(v.Get("chern.grid")); err != nil || len(c.Grid) != 2 {
			return nil, fmt.Errorf("chern.grid must hold two resolutions")
		}
		sc.Chern = c
	}
	return sc, nil
}

// mesh builds the k-point mesh of the scenario.
func (sc *scenario) mesh() (*qtransport.Mesh, error) {
	if sc.Sampling == qtransport.Path {
		vertices := make([]qtransport.Vec, len(sc.Path))
		for i, p := range sc.Path {
			copy(vertices[i][:], p)
		}
		return qtransport.NewPath(sc.model.Dim(), sc.PerSegment, vertices...)
	}
	var zone qtransport.Zone
	if sc.Zone == "square" {
		zone = qtransport.SquareZone(1)
	} else {
		var err error
		if zone, err = qtransport.LatticeZone(sc.model); err != nil {
			return nil, err
		}
	}
	var opts []qtransport.MeshOption
	if sc.Normalized {
		opts = append(opts, qtransport.Normalized())
	}
	return qtransport.NewMesh(sc.Resolution, zone, sc.Sampling, opts...)
}

func (sc *scenario) bandOptions() qtransport.BandOptions {
	return qtransport.BandOptions{Workers: sc.Workers, DegeneracyTol: sc.DegeneracyTol, Logger: logger}
}

// or returns the value at key, or def when it is missing. Optional tables
// take their defaults here: a viper default marks its table as set.
func or(v *viper.Viper, key string, def interface{}) interface{} {
	if v.IsSet(key) {
		return v.Get(key)
	}
	return def
}

func floatMap(raw interface{}) (map[string]float64, error) {
	if raw == nil {
		return nil, nil
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if out[k], err = cast.ToFloat64E(v); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return out, nil
}

func floatSlice(raw interface{}) ([]float64, error) {
	if raw == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		// A single number is a one element list.
		f, ferr := cast.ToFloat64E(raw)
		if ferr != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = cast.ToFloat64E(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return out, nil
}
