// Package integration contains the Integration bounded context.
// It models pluggable third-party features a business can enable or disable.
//
// Key concepts:
//   - Integration: the registered record with its graph edges, health and lifecycle hooks
//   - ConditionalContent: payloads exposed only when every Condition holds for a Context
//   - EnhancedFeature: a composite feature available when its base and all enhancers are enabled
//   - SearchFilter: the AND-composed catalog query
//
// Graph algorithms live in the dependency package; orchestration lives in the
// application layer.
package integration
