package kernel

import "github.com/rs/zerolog"

// logInternalError records an INTERNAL_ERROR condition (spec §7: "logged
// via the trace collaborator; the system attempts to keep running but
// may have lost a waiter"). Expected-outcome and validation results are
// never logged, mirroring the teacher's restraint — core/blockstm's
// log.Warn call in dag.go only fires on a genuine graph-building failure,
// not on the routine control flow around it.
func logInternalError(logger zerolog.Logger, component, name string, err error) {
	logger.Error().
		Str("component", component).
		Str("primitive", name).
		Err(err).
		Msg("kernel invariant violated")
}
