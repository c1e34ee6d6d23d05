// Package connector groups the pieces a tap is assembled from.
//
//   - core: the Source, Sink and APIClient interfaces.
//
//   - base: BaseConnector, which owns the HTTP client, the retry policy
//     and the per-connector logger. Sources embed it.
//
//   - sources: source connectors. linkedin_ads extracts LinkedIn Ads
//     account structure and analytics.
//
//   - destinations: sinks. singer writes SCHEMA, RECORD and STATE
//     messages as JSON lines, optionally compressed.
//
//   - registry: name-based factories. Connectors register themselves in
//     init, so importing the sources and destinations packages is enough
//     to make every connector available:
//
//	import (
//		_ "github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/destinations"
//		_ "github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/sources"
//	)
//
//	sink, err := registry.CreateSink("singer", cfg)
//	if err != nil {
//		return err
//	}
//	src, err := registry.CreateSource(ctx, "linkedin_ads", cfg, sink)
//	if err != nil {
//		return err
//	}
//	defer src.Close(ctx)
//	return src.Sync(ctx)
package connector
