package types

// Version is the canonical project version, reported by the CLI's
// version output. Store schema migrations and snapshot filenames do not
// use it.
const Version = "0.1.0"

// SchemaVersion is the current content store schema version. Bumped only
// for additive, idempotent migrations (spec §6: "migrations are additive
// and idempotent").
const SchemaVersion = 1
