// Package server implements the HTTP API for the platformd control plane.
//
// This package provides:
//   - Versioned REST endpoints under /api/v1 for services, deployments
//     and infrastructure operations
//   - Per-IP rate limiting with a tighter budget for provisioning
//   - Health, liveness and readiness endpoints for monitoring
//   - Structured logging of all HTTP requests
//
// The server integrates with other packages:
//   - internal/store: SQLite persistence for services and deployments
//   - internal/platform: provisioning orchestration across CI/CD,
//     infrastructure and monitoring
//   - internal/operation: in-memory tracking of background
//     infrastructure operations
//
// Security features:
//   - Service, team and environment name validation on all inputs
//   - Payload size limits (1MB max)
//   - Rate limiting (global and provisioning-specific)
package server
