package qtransport

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Hamiltonian is a Bloch Hamiltonian of a lattice model. Implementations are
// immutable and safe for concurrent use.
type Hamiltonian interface {
	// Name returns the registry name of the model.
	Name() string
	// Orbitals returns the dimension of the Hamiltonian matrix.
	Orbitals() int
	// Dim returns the number of momentum components the model depends on.
	Dim() int
	// HamiltonianTo stores H(k) in dst, which must be Orbitals() x Orbitals().
	HamiltonianTo(dst *mat.CDense, k Vec)
	// VelocityTo stores ∂H/∂k_axis in dst, which must be Orbitals() x Orbitals().
	VelocityTo(dst *mat.CDense, k Vec, axis int)
}

// Lattice is implemented by models which know their reciprocal lattice.
type Lattice interface {
	// ReciprocalVectors returns the Dim() primitive reciprocal lattice vectors;
	// H(k+b) = H(k) for each of them.
	ReciprocalVectors() []Vec
}

// AnalyticSpectrum is implemented by models with a closed-form spectrum.
type AnalyticSpectrum interface {
	// EnergiesTo stores the ascending eigenvalues at k in dst and returns
	// true, or returns false if no closed form applies to this model instance.
	// When true, the eigenvectors are the identity.
	EnergiesTo(dst []float64, k Vec) bool
}

// Evaluate returns H(k).
func Evaluate(h Hamiltonian, k Vec) *mat.CDense {
	n := h.Orbitals()
	dst := mat.NewCDense(n, n, nil)
	h.HamiltonianTo(dst, k)
	return dst
}

// Velocity returns the velocity operator ∂H/∂k_axis at k.
func Velocity(h Hamiltonian, k Vec, axis int) *mat.CDense {
	n := h.Orbitals()
	dst := mat.NewCDense(n, n, nil)
	h.VelocityTo(dst, k, axis)
	return dst
}

// Model enumerates the models of the registry.
type Model uint8

const (
	// TightBindingSquareModel is the nearest-neighbour square lattice.
	TightBindingSquareModel Model = iota + 1
	// HaldaneModel is the spinless Chern insulator on the honeycomb lattice.
	HaldaneModel
	// KaneMeleModel is the spinful quantum spin Hall model on the honeycomb lattice.
	KaneMeleModel
	// AltermagnetModel is the two-band d-wave altermagnet.
	AltermagnetModel
)

var modelNames = map[Model]string{
	TightBindingSquareModel: "tightbinding-square",
	HaldaneModel:            "haldane",
	KaneMeleModel:           "kane-mele",
	AltermagnetModel:        "altermagnet",
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Model(%d)", uint8(m))
}

// ModelFromString returns the model of the registry named s.
func ModelFromString(s string) (Model, error) {
	clean := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch clean {
	case "tightbinding-square", "tight-binding-square", "tightbinding", "square":
		return TightBindingSquareModel, nil
	case "haldane":
		return HaldaneModel, nil
	case "kane-mele", "kanemele":
		return KaneMeleModel, nil
	case "altermagnet":
		return AltermagnetModel, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrUnknownModel)
}

// ModelNames returns the registry names, sorted.
func ModelNames() []string {
	names := make([]string, 0, len(modelNames))
	for _, name := range modelNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// modelParams lists the accepted parameters of each model and their defaults.
var modelParams = map[Model]map[string]float64{
	TightBindingSquareModel: {"t": 1, "tp": 0, "onsite": 0, "orbitals": 1, "splitting": 0},
	HaldaneModel:            {"t1": 1, "t2": 0.1, "phi": math.Pi / 2, "m": 0.2},
	KaneMeleModel:           {"t": 1, "lambda_so": 0.1, "lambda_v": 0.2, "lambda_r": 0},
	AltermagnetModel:        {"t": 1, "j": 0.1, "lambda": 0.2},
}

// NewModel builds a registered model from a parameter map. Missing parameters
// take their defaults; parameter names are case insensitive.
//
//	tightbinding-square: t, tp, onsite, orbitals, splitting (orbital a sits at onsite + a·splitting)
//	haldane:             t1, t2, phi, m
//	kane-mele:           t, lambda_so, lambda_v, lambda_r
//	altermagnet:         t, j, lambda
func NewModel(name string, params map[string]float64) (Hamiltonian, error) {
	model, err := ModelFromString(name)
	if err != nil {
		return nil, err
	}
	p := make(map[string]float64, len(modelParams[model]))
	for k, v := range modelParams[model] {
		p[k] = v
	}
	for k, v := range params {
		key := strings.ToLower(k)
		if _, ok := p[key]; !ok {
			return nil, fmt.Errorf("%s has no parameter %q: %w", model, k, ErrInvalidModelParameter)
		}
		p[key] = v
	}
	switch model {
	case TightBindingSquareModel:
		n := int(p["orbitals"])
		if float64(n) != p["orbitals"] || n < 1 {
			return nil, fmt.Errorf("%s: orbitals = %g: %w", model, p["orbitals"], ErrInvalidModelParameter)
		}
		onsite := make([]float64, n)
		for a := range onsite {
			onsite[a] = p["onsite"] + float64(a)*p["splitting"]
		}
		return NewTightBindingSquare(p["t"], p["tp"], onsite...)
	case HaldaneModel:
		return NewHaldane(p["t1"], p["t2"], p["phi"], p["m"])
	case KaneMeleModel:
		return NewKaneMele(p["t"], p["lambda_so"], p["lambda_v"], p["lambda_r"])
	default:
		return NewAltermagnet(p["t"], p["j"], p["lambda"])
	}
}
