package orchestrator

import "github.com/pkg/errors"

// Named error kinds per the error taxonomy: each is a sentinel value
// compared with errors.Is, matching casegen/rule's style.
var (
	// ErrUnsupportedSender is returned (and the offending case
	// skipped, not aborted) when a case's sender is not a cluster-
	// local host.
	ErrUnsupportedSender = errors.New("illuminatio: case sender is not a cluster-local host")
	// ErrDaemonNotReady is returned when P6's retry budget is
	// exhausted before the runner daemon set reports ready.
	ErrDaemonNotReady = errors.New("illuminatio: runner daemon set did not become ready")
	// ErrMissingPort replaces the original's "err" port-string
	// sentinel (spec §9): surfaced when a numeric port has no
	// matching service port to rewrite onto.
	ErrMissingPort = errors.New("illuminatio: no service port matches the requested port")
	// ErrArtifactUnreadable is returned when P7's retry budget is
	// exhausted before every expected result artifact is readable.
	ErrArtifactUnreadable = errors.New("illuminatio: result artifact never became readable")
)
