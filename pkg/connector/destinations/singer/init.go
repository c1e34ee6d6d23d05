package singer

import (
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSink("singer", NewFromConfig)
}
