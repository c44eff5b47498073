package schedule

import "errors"

// ErrNoSchedule is returned when neither the grid path nor the line-based
// fallback could recover a plausible day table. It is a designed outcome for
// untrusted third-party images, not a failure of the pipeline itself.
var ErrNoSchedule = errors.New("no schedule detected")
