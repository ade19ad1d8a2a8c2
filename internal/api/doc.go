// Package api exposes the sensor's value attribute over HTTP.
//
// # Separation of Concerns
//
// The attribute decides what a read or a write means; this package only maps
// it onto routes, status codes and content types. The measurement core
// remains unaware of HTTP.
//
// # Versioning
//
// All routes are versioned under /v1.
//
// # Current Endpoints
//
//   - GET /v1/healthz: basic liveness/readiness
//   - GET /v1/distance/value: one measurement as a decimal line, -1 on
//     timeout. Any other method on this path is rejected with 405.
package api
