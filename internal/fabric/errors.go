package fabric

import "errors"

// Sentinel error kinds from the error handling design. Callers should use
// errors.Is against these rather than string-matching.
var (
	ErrSubscriberConflict = errors.New("fabric: subscriber id already registered")
	ErrSubscriberUnknown  = errors.New("fabric: unknown subscriber id")
	ErrRecordDecode       = errors.New("fabric: malformed record")
	ErrBusClosed          = errors.New("fabric: bus is shutting down")
)
