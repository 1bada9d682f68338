// Package all registers every landing sink.
package all

import (
	_ "pushdown/internal/landing/badger"
	_ "pushdown/internal/landing/mongo"
	_ "pushdown/internal/landing/postgres"
	_ "pushdown/internal/landing/sqlite"
)
