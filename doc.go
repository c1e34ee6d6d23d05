// Package linkedinadstap extracts LinkedIn Ads data: account structure
// (accounts, campaign groups, campaigns, creatives, video ads, account
// users) and daily ad analytics by campaign, creative and member
// demographic. Output is a stream of SCHEMA, RECORD and STATE messages
// that downstream loaders consume; STATE carries per-stream bookmarks so
// the next run resumes where the last one stopped.
//
// # Quick Start
//
//	linkedin-ads config init linkedin-ads.yaml
//	export LINKEDIN_ACCESS_TOKEN=...
//	linkedin-ads sync --config linkedin-ads.yaml --state state.json > out.jsonl
//
// Run on a schedule instead of once:
//
//	linkedin-ads schedule --config linkedin-ads.yaml --cron "0 */6 * * *"
//
// # Layout
//
//   - cmd/linkedin-ads: the command line.
//   - pkg/connector/sources/linkedin_ads: streams, pagination, date windows,
//     response merging and identifier resolution.
//   - pkg/connector/destinations/singer: the message writer.
//   - pkg/clients: HTTP client with OAuth2, retries, rate limiting and a
//     circuit breaker.
//   - pkg/state: bookmark state on local disk, S3 or GCS.
//   - pkg/config, pkg/logger, pkg/metrics, pkg/observability: ambient stack.
package linkedinadstap
