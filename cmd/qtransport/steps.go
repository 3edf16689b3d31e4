package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/javahedi/qtransport"
	"github.com/javahedi/qtransport/dataio"
	"gonum.org/v1/gonum/mat"
)

// unconfigured is returned by a step whose table is missing from the
// scenario, unless the whole scenario is being run.
func (r *runner) unconfigured(table string) error {
	if r.cmd.Name() == "run" {
		return nil
	}
	return fmt.Errorf("%s: no [%s] table", scenarioPath, table)
}

// export writes one file through fn.
func (r *runner) export(kind, ext string, fn func(io.Writer) error) error {
	f, err := r.sc.Export.Create(kind, ext)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", f.Name(), err)
	}
	r.cmd.Printf("Saving file to %s.\n", f.Name())
	return f.Close()
}

func (r *runner) record() *dataio.Summary {
	if r.summary == nil {
		if r.bs != nil {
			r.summary = dataio.NewSummary(r.bs, r.sc.Params)
		} else {
			r.summary = &dataio.Summary{Model: r.sc.model.Name(), Parameters: r.sc.Params}
		}
	}
	return r.summary
}

func (r *runner) bands(ctx context.Context) error {
	mesh, err := r.sc.mesh()
	if err != nil {
		return err
	}
	if r.bs, err = qtransport.ComputeBands(ctx, r.sc.model, mesh, r.sc.bandOptions()); err != nil {
		return err
	}
	r.record()
	return r.export("bands", "csv", func(w io.Writer) error {
		return dataio.WriteBands(w, r.bs)
	})
}

func (r *runner) dos(ctx context.Context) error {
	cfg := r.sc.DOS
	if cfg == nil {
		return r.unconfigured("dos")
	}
	d, err := qtransport.ComputeDOS(ctx, r.bs, cfg.Window, cfg.Bins, cfg.Broadening, qtransport.DOSOptions{
		Kernel:     cfg.Kernel,
		Projection: cfg.Projection,
		Workers:    r.sc.Workers,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return r.export("dos", "csv", func(w io.Writer) error {
		return dataio.WriteDOS(w, d)
	})
}

func (r *runner) boltzmann(ctx context.Context) error {
	cfg := r.sc.Transport
	if cfg == nil {
		return r.unconfigured("transport")
	}
	res, err := qtransport.NewBoltzmannSolver(qtransport.BoltzmannOptions{
		Thermal:       cfg.Thermal,
		Smearing:      cfg.Smearing,
		DegeneracyTol: r.sc.DegeneracyTol,
		Workers:       r.sc.Workers,
		Logger:        logger,
	}).Solve(ctx, r.bs, cfg.Temperature, cfg.Mu, cfg.Tau)
	if err != nil {
		return err
	}
	r.record().SetBoltzmann(res)
	tensors := map[string]mat.Matrix{"sigma": res.Sigma, "alpha": res.Alpha, "kappa": res.Kappa}
	order := []string{"sigma", "alpha", "kappa"}
	if S, err := res.Seebeck(); err == nil {
		tensors["seebeck"] = S
		order = append(order, "seebeck")
	}
	return r.export("boltzmann", "csv", func(w io.Writer) error {
		return dataio.WriteTensor(w, tensors, order...)
	})
}

func (r *runner) kubo(ctx context.Context) error {
	cfg := r.sc.Kubo
	if cfg == nil {
		if r.cmd.Name() == "transport" {
			return nil
		}
		return r.unconfigured("kubo")
	}
	tr := r.sc.Transport
	solver := qtransport.NewKuboSolver(qtransport.KuboOptions{
		Thermal:        tr.Thermal,
		Smearing:       tr.Smearing,
		DegeneracyTol:  r.sc.DegeneracyTol,
		Intraband:      cfg.Intraband,
		RelaxationTime: cfg.RelaxationTime,
		Workers:        r.sc.Workers,
		Logger:         logger,
	})
	records := make([]dataio.ConductivityRecord, 0, len(cfg.Omegas))
	for _, ω := range cfg.Omegas {
		res, err := solver.Solve(ctx, r.bs, ω, tr.Temperature, tr.Mu, cfg.Eta)
		if err != nil {
			return fmt.Errorf("ω = %g: %w", ω, err)
		}
		records = append(records, dataio.ConductivityRecord{Omega: ω, Sigma: res.Sigma})
		r.record().SetKubo(res)
	}
	return r.export("kubo", "csv", func(w io.Writer) error {
		return dataio.WriteConductivity(w, records)
	})
}

func (r *runner) chern(ctx context.Context) error {
	cfg := r.sc.Chern
	if cfg == nil {
		return r.unconfigured("chern")
	}
	c, err := qtransport.ChernNumber(ctx, r.sc.model, cfg.Grid[0], cfg.Grid[1], cfg.Occupied, r.sc.bandOptions())
	if err != nil {
		return err
	}
	r.cmd.Printf("Chern number of the %d lowest bands: %.6f\n", cfg.Occupied, c)
	r.record().SetChern(c)
	return nil
}

func (r *runner) writeSummary(elapsed time.Duration) error {
	s := r.record()
	s.Duration = elapsed.String()
	return r.export("summary", "yaml", func(w io.Writer) error {
		return dataio.WriteSummary(w, s)
	})
}
