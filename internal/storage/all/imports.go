// Package all links every storage backend into the binary. Importing it for
// side effects makes the factory aware of each registered kind.
package all

import (
	_ "mobility/internal/storage/postgres"
	_ "mobility/internal/storage/sqlite"
)
