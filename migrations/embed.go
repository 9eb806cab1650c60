package migrations

import "embed"

// Files exposes embedded SQL migrations. Each backend reads its own
// subdirectory (postgres/ or sqlite/) in lexicographical order.
//
//go:embed postgres/*.sql sqlite/*.sql
var Files embed.FS
