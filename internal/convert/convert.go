package convert

import (
	"errors"
	"math"

	"github.com/vacstack/outgas-engine/internal/models"
)

// ErrInvalidGeometry signals a non-positive chamber volume or surface area.
var ErrInvalidGeometry = errors.New("invalid chamber geometry")

// ErrInvalidEstimate signals an attempt to convert an estimate the fitter
// marked invalid.
var ErrInvalidEstimate = errors.New("invalid rate estimate")

// Geometry holds the chamber constants for the conversion. Volume is in m^3,
// Area in m^2. The sigma fields are optional one-sigma uncertainties; when
// zero the constants are treated as exact.
type Geometry struct {
	Volume      float64
	Area        float64
	VolumeSigma float64
	AreaSigma   float64
}

// Validate reports ErrInvalidGeometry for non-positive volume or area.
func (g Geometry) Validate() error {
	if g.Volume <= 0 || g.Area <= 0 {
		return ErrInvalidGeometry
	}
	return nil
}

// Convert turns a valid rate estimate into an outgassing rate,
// rate = slope * volume / area, propagating the slope standard error and,
// when supplied, the geometry uncertainties through the product/quotient
// rule. The sign of the fitted slope is preserved.
func Convert(series models.Series, est models.RateEstimate, geom Geometry) (models.OutgasResult, error) {
	if err := geom.Validate(); err != nil {
		return models.OutgasResult{}, err
	}
	if !est.Valid {
		return models.OutgasResult{}, ErrInvalidEstimate
	}

	scale := geom.Volume / geom.Area
	rate := est.Slope * scale

	uncertainty := est.SlopeStderr * scale
	if geom.VolumeSigma > 0 || geom.AreaSigma > 0 {
		dSlope := scale * est.SlopeStderr
		dVolume := est.Slope / geom.Area * geom.VolumeSigma
		dArea := est.Slope * geom.Volume / (geom.Area * geom.Area) * geom.AreaSigma
		uncertainty = math.Sqrt(dSlope*dSlope + dVolume*dVolume + dArea*dArea)
	}

	return models.OutgasResult{
		Window:          est.Interval.Window(series),
		Rate:            rate,
		RateUncertainty: uncertainty,
		SampleCount:     est.Interval.Count(),
	}, nil
}
