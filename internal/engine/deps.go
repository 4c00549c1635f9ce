// Package engine runs the check registries over a submission, aggregates
// their scores and applies the domain gate.
package engine

import (
	"fmt"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/preference"
)

// Deps contains the dependencies required by the engine.
type Deps struct {
	// Reference supplies the planted answers for the poison check.
	Reference preference.ReferenceSource
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Reference == nil {
		return fmt.Errorf("%w: reference source dependency is required", common.ErrMissingConfig)
	}
	return nil
}
