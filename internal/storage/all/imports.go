// Package all registers every built-in flattened-store backend with the
// storage factory. Import it for side effects from the wiring layer:
//
//	import _ "pushdown/internal/storage/all"
//
// A binary that needs only some backends can import those packages
// directly instead.
package all

import (
	_ "pushdown/internal/storage/duckdb"
	_ "pushdown/internal/storage/mssql"
	_ "pushdown/internal/storage/mysql"
	_ "pushdown/internal/storage/postgres"
	_ "pushdown/internal/storage/sqlite"
)
