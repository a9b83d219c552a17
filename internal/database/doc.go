// Package database provides the data access layer for the library.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup (sqlite or postgres), migrations
//	├── books/           # Catalogue rows and guarded stock counters
//	├── people/          # Students, teachers and staff accounts
//	├── borrows/         # Borrow records and loan views
//	├── attendance/      # Append-only attendance log
//	├── audit/           # Audit events
//	└── dbtest/          # Migrated throwaway databases for tests
//
// # Using Sub-packages
//
// Each sub-package provides a Repository wrapping a *gorm.DB. Repositories are
// cheap to construct, so services build them over a transaction handle:
//
//	err := db.Transaction(func(tx *gorm.DB) error {
//		taken, err := books.NewRepository(tx).TakeCopy(ctx, bookID)
//		...
//	})
//
// # Consistency
//
// Stock counters are only changed through conditional updates
// (TakeCopy, ReleaseCopy, SetQuantity) that re-check the guard in the same
// statement. A partial unique index keeps one open borrow per person and book,
// and attendance rows carry a per-person sequence number under a unique index.
// Duplicate-key errors are translated to gorm.ErrDuplicatedKey.
package database
