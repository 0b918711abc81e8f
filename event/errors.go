package event

import "errors"

// ErrStopPropagation stops the remaining listeners of a dispatch without
// reporting a failure to the dispatcher.
var ErrStopPropagation = errors.New("event: stop propagation")
