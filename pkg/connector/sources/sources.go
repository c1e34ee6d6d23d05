// Package sources registers every source connector. Import it for side
// effects.
package sources

import (
	// Import all source connectors to trigger init() registration
	_ "github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/sources/linkedin_ads"
)
