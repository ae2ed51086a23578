// Package all wires every built-in storage backend into the storage factory.
//
// It exists purely for side effects: importing it (even blank) runs the init
// functions of the concrete backends, which register their openers with the
// storage package. After importing this package the following store kinds
// are available to storage.Open:
//
//   - "sqlite"   (internal/storage/sqlite)
//   - "postgres" (internal/storage/postgres)
package all

import (
	_ "github.com/kpfister44/illinois-report-card-api/internal/storage/postgres"
	_ "github.com/kpfister44/illinois-report-card-api/internal/storage/sqlite"
)
