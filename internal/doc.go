// Package internal documents the allez server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, and routing
// - domain: business logic and domain models
// - storage: database access and repositories (pgx + Postgres)
// - jobs: background workers and queues
// - payments, images, cache: remote provider clients
// - auth, config, metrics, sanitize: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
