// Package api defines the request and response types of the SRIFlow HTTP API.
//
// # API Overview
//
// SRIFlow provides a RESTful API for:
//   - Context optimization (Strip-Recall-Inject) over a conversation
//   - Storing task experiences as episodic memories and giving feedback on them
//   - Token optimization metrics and alerts
//   - Adaptive tuning recommendations, history and effectiveness
//   - Health monitoring
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// Prometheus metrics are served separately on the metrics port:
//
//	http://localhost:9091/metrics
//
// # Response Envelope
//
// Every /api/v1 endpoint answers with the envelope written by
// api/handlers.WriteSuccess and api/handlers.WriteError:
//
//	{"success": true, "data": {...}, "timestamp": "..."}
//	{"success": false, "error": {"code": "INVALID_REQUEST", "message": "..."}, "timestamp": "..."}
package api
