package worker

import "errors"

var (
	// ErrNotApplied wraps failures that guarantee the command never ran:
	// it was refused by its shard queue or dropped from it unapplied.
	ErrNotApplied = errors.New("command not applied")
	// ErrAbandoned wraps the context error of a caller that stopped waiting
	// after its command was queued. The command may still be applied.
	ErrAbandoned = errors.New("command queued, reply abandoned")
)
