package kernel

import "errors"

var (
	// ErrRecordDecode marks a malformed kernel ring buffer record. Counted
	// and dropped, never propagated to the bus.
	ErrRecordDecode = errors.New("kernel: malformed ring buffer record")
	// ErrAttach marks a failure to load or attach the kernel probe. Only
	// fatal when syscall tracing was explicitly enabled.
	ErrAttach = errors.New("kernel: probe attach failed")
)
