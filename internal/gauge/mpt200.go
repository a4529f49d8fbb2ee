package gauge

import (
	"fmt"
	"math"
)

// MPT200Pressure converts a Pfeiffer MPT200 analog reading (volts) into
// pressure in Pa.
func MPT200Pressure(volts float64) float64 {
	return math.Pow(10, 1.667*volts-9.333)
}

// MPT200Sigma returns the one-sigma measurement uncertainty of an MPT200
// pressure reading in Pa, per the gauge specification for N2. Readings
// outside the gauge's usable range produce an error.
func MPT200Sigma(pressure float64) (float64, error) {
	switch {
	case pressure > 1000.0 && pressure < 100000.0:
		return pressure * 0.3, nil
	case pressure > 2e-3 && pressure <= 1000.0:
		return pressure * 0.1, nil
	case pressure > 1e-8 && pressure <= 2e-3:
		return pressure * 0.25, nil
	default:
		return 0, fmt.Errorf("pressure %g Pa outside MPT200 range", pressure)
	}
}

// ErrorModel selects how per-sample uncertainties are assigned to readings.
type ErrorModel string

const (
	// ModelNone attaches no uncertainties; fits are unweighted.
	ModelNone ErrorModel = "none"
	// ModelConstant attaches a fixed sigma to every reading.
	ModelConstant ErrorModel = "constant"
	// ModelMPT200 derives sigma from the MPT200 specification.
	ModelMPT200 ErrorModel = "mpt200"
)

// Sigma returns the uncertainty for a pressure reading under the model. A
// reading the model cannot price gets sigma zero, leaving it unweighted.
func (m ErrorModel) Sigma(pressure, constant float64) float64 {
	switch m {
	case ModelConstant:
		return constant
	case ModelMPT200:
		sigma, err := MPT200Sigma(pressure)
		if err != nil {
			return 0
		}
		return sigma
	default:
		return 0
	}
}
