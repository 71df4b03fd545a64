//go:build debug

package bridge

import "time"

// DefaultAgingTimeout is the debug-build MAC aging timeout (§4.1): short
// enough to exercise eviction in manual testing without waiting 5 minutes.
const DefaultAgingTimeout = 10 * time.Second
