// Package webhook implements the sales-webhook ingestion pipeline: payload
// origin detection, tiered field resolution with provenance, category
// mapping, sale dedup, participant/ticket provisioning, ticket email
// dispatch, and the always-written audit trail.
//
// Payment providers deliver loosely-specified JSON that changed shape across
// schema versions. Every field is resolved independently through an explicit
// most-specific-first tier list per provider; a missing path falls through to
// the next tier, never to an error.
package webhook
