package opendata

import "errors"

// Error kinds callers branch on with errors.Is. List operations downgrade
// transport and shape problems to an empty result plus one of these; get-by-id
// propagates them.
var (
	ErrTransport = errors.New("open-data transport failure")
	ErrNotFound  = errors.New("parking not found")
	ErrMalformed = errors.New("unexpected open-data response shape")
	ErrEmpty     = errors.New("open-data catalog is empty")
)
