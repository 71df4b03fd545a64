//go:build !debug

package bridge

import "time"

// DefaultAgingTimeout is the production MAC aging timeout (§4.1).
const DefaultAgingTimeout = 5 * time.Minute
