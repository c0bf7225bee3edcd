package eventloop

import "time"

// timeNow is indirected so tests can substitute a controllable clock
// without real sleeps.
var timeNow = time.Now
