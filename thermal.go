package qtransport

import (
	"fmt"
	"math"
)

// KB is the Boltzmann constant in eV/K.
const KB = 8.617333262e-5

// Thermal defines the unit of the temperatures passed to the solvers.
type Thermal struct {
	// Kelvin interprets temperatures in K instead of model energy units.
	Kelvin bool
	// EnergyScale is the model energy unit in eV when Kelvin is set (default 1).
	EnergyScale float64
}

// KT returns the thermal energy k_B T in model units.
func (th Thermal) KT(T float64) float64 {
	if !th.Kelvin {
		return T
	}
	scale := th.EnergyScale
	if scale <= 0 {
		scale = 1
	}
	return KB * T / scale
}

// FermiDirac returns the occupation 1/(exp(x/kT)+1) of a state at x = E - μ.
// At kT = 0 it is the step function, 1/2 at x = 0.
func FermiDirac(x, kT float64) float64 {
	if kT == 0 {
		switch {
		case x < 0:
			return 1
		case x > 0:
			return 0
		}
		return 0.5
	}
	if x > 0 {
		e := math.Exp(-x / kT)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(x/kT))
}

// FermiWindow returns -∂f/∂E at x = E - μ for kT > 0.
func FermiWindow(x, kT float64) float64 {
	βx := x / kT
	if math.Abs(βx) > 700 {
		return 0
	}
	c := math.Cosh(βx / 2)
	return 1 / (4 * kT * c * c)
}

// gaussian is the normalized Gaussian of width σ.
func gaussian(x, σ float64) float64 {
	return math.Exp(-x*x/(2*σ*σ)) / (σ * math.Sqrt(2*math.Pi))
}

// occupation evaluates the Fermi-Dirac functions at fixed temperature and
// chemical potential. At zero temperature -∂f/∂E is a Gaussian of width smearing.
type occupation struct {
	kT, μ, smearing float64
}

func newOccupation(th Thermal, T, μ, smearing float64) (occupation, error) {
	if !finite(T) || T < 0 {
		return occupation{}, fmt.Errorf("T = %g: %w", T, ErrInvalidTemperature)
	}
	if !finite(μ) {
		return occupation{}, fmt.Errorf("μ = %g: %w", μ, ErrInvalidChemicalPotential)
	}
	kT := th.KT(T)
	if !finite(kT) {
		return occupation{}, fmt.Errorf("kT = %g: %w", kT, ErrInvalidTemperature)
	}
	return occupation{kT: kT, μ: μ, smearing: smearing}, nil
}

func (o occupation) f(E float64) float64 {
	return FermiDirac(E-o.μ, o.kT)
}

func (o occupation) window(E float64) float64 {
	if o.kT == 0 {
		return gaussian(E-o.μ, o.smearing)
	}
	return FermiWindow(E-o.μ, o.kT)
}
