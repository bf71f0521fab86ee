package profile

import (
	"errors"
	"fmt"

	"github.com/vepnet/tgen/core/nnduration"
)

// ErrImpairPercent indicates an impairment percentage outside [0, 100].
var ErrImpairPercent = errors.New("impairment percentage must be between 0 and 100")

// Impairments configures the impairment stage of a profile pipeline.
type Impairments struct {
	Latency nnduration.Milliseconds `json:"latency,omitempty"`
	Jitter  nnduration.Milliseconds `json:"jitter,omitempty"`

	LossPct      float64 `json:"lossPercent,omitempty"`
	BurstLossPct float64 `json:"burstLossPercent,omitempty"`
	DuplicatePct float64 `json:"duplicatePercent,omitempty"`
	ReorderPct   float64 `json:"reorderPercent,omitempty"`

	// ShapingMbps caps the release rate below the pacer rate. Zero disables shaping.
	ShapingMbps float64 `json:"shapingMbps,omitempty"`
}

// IsZero determines whether no impairment is configured.
func (im Impairments) IsZero() bool {
	return im == Impairments{}
}

// clamp forces loss+duplicate+reorder to sum to at most 100 percent, reducing
// in reverse order of application.
func (im *Impairments) clamp() (warns []string) {
	sum := im.LossPct + im.DuplicatePct + im.ReorderPct
	if sum <= 100 {
		return nil
	}
	warns = append(warns, fmt.Sprintf("loss+duplicate+reorder percentages sum to %0.1f, clamping to 100", sum))
	excess := sum - 100
	for _, pct := range []*float64{&im.ReorderPct, &im.DuplicatePct, &im.LossPct} {
		cut := min(excess, *pct)
		*pct -= cut
		excess -= cut
		if excess <= 0 {
			break
		}
	}
	return warns
}

func (im Impairments) validate() error {
	for _, pct := range []float64{im.LossPct, im.BurstLossPct, im.DuplicatePct, im.ReorderPct} {
		if pct < 0 || pct > 100 {
			return ErrImpairPercent
		}
	}
	if im.ShapingMbps < 0 {
		return ErrBandwidth
	}
	return nil
}
