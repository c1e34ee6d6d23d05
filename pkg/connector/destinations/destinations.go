// Package destinations registers every sink. Import it for side effects.
package destinations

import (
	// Import all sinks to trigger init() registration
	_ "github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/destinations/singer"
)
