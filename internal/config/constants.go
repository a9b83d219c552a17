package config

const (
	// DefaultDatabasePath is the default sqlite file for the library database
	DefaultDatabasePath = "./library.db"

	// DefaultLoanDays is the loan period applied to every borrow
	DefaultLoanDays = 14

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)
