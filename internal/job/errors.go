package job

import "errors"

// Job errors. Callers should check with errors.Is().
var (
	ErrNotFound          = errors.New("job not found")
	ErrAlreadyCancelled  = errors.New("job already cancelled")
	ErrQuotaExceeded     = errors.New("active job quota exceeded")
	ErrInvalidSeed       = errors.New("invalid seed url")
	ErrInvalidConfig     = errors.New("invalid job config")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrShuttingDown      = errors.New("job manager is shutting down")
	ErrJobActive         = errors.New("job is still running")
)
