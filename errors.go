package qtransport

import "errors"

// Every error returned by this package wraps one of these sentinels; match
// them with errors.Is. Failures are deterministic functions of the input, so
// none of them is worth retrying unchanged.
var (
	// ErrInvalidResolution is returned for a mesh axis (or DOS grid) with fewer than one sample.
	ErrInvalidResolution = errors.New("qtransport: invalid resolution")

	// ErrInvalidZone is returned for an empty zone or a singular reciprocal basis.
	ErrInvalidZone = errors.New("qtransport: invalid zone")

	// ErrInvalidModelParameter is returned by model constructors for out-of-range parameters.
	ErrInvalidModelParameter = errors.New("qtransport: invalid model parameter")

	// ErrUnknownModel is returned when a model name is not in the registry.
	ErrUnknownModel = errors.New("qtransport: unknown model")

	// ErrDimensionMismatch is returned when the mesh and the model disagree on dimension.
	ErrDimensionMismatch = errors.New("qtransport: dimension mismatch")

	// ErrDiagonalization signals a Hamiltonian that is not numerically Hermitian,
	// or an eigen decomposition that failed. It indicates a bug in the model.
	ErrDiagonalization = errors.New("qtransport: diagonalization failed")

	// ErrInvalidBroadening is returned for a broadening outside its allowed range.
	ErrInvalidBroadening = errors.New("qtransport: invalid broadening")

	// ErrInvalidWindow is returned for an energy window with Max <= Min.
	ErrInvalidWindow = errors.New("qtransport: invalid energy window")

	// ErrInvalidTemperature is returned for a negative or non-finite temperature.
	ErrInvalidTemperature = errors.New("qtransport: invalid temperature")

	// ErrInvalidChemicalPotential is returned for a non-finite chemical potential.
	ErrInvalidChemicalPotential = errors.New("qtransport: invalid chemical potential")

	// ErrInvalidRelaxationTime is returned for a negative or non-finite relaxation time.
	ErrInvalidRelaxationTime = errors.New("qtransport: invalid relaxation time")

	// ErrInvalidFrequency is returned for a non-finite frequency.
	ErrInvalidFrequency = errors.New("qtransport: invalid frequency")

	// ErrDegenerateBand is returned by the Kubo solver when a zero broadening meets a
	// vanishing energy denominator.
	ErrDegenerateBand = errors.New("qtransport: division by a degenerate energy denominator")

	// ErrNoLattice is returned when an operation needs the reciprocal lattice of a
	// model that does not expose one.
	ErrNoLattice = errors.New("qtransport: model has no reciprocal lattice")
)
