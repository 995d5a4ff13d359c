package model

import "time"

// Clock supplies the current time. Injected so "not past" checks are
// deterministic in tests; production wiring uses time.Now.
type Clock func() time.Time
