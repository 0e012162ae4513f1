package loracache

import "github.com/pkg/errors"

var (
	// ErrUnknownScope is fatal: an address scope code outside the closed set.
	ErrUnknownScope = errors.New("unknown address scope")
	// ErrUnexpectedValue is fatal: a value or relation shape that cannot be interpreted.
	ErrUnexpectedValue = errors.New("unexpected value")
	// ErrMissingOwner marks an address or it account with neither person nor unit.
	// Records failing with it are dropped, not propagated.
	ErrMissingOwner = errors.New("record has no owner")
	ErrNotPopulated = errors.New("cache is not populated")
	// ErrMissingSnapshot is returned by a dry run when a persisted blob is absent.
	ErrMissingSnapshot = errors.New("persisted snapshot missing")
)
