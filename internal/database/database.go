package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/entities"
)

// Models lists every table the library owns, in migration order.
var Models = []any{
	&entities.Book{},
	&entities.Student{},
	&entities.Teacher{},
	&entities.User{},
	&entities.BorrowRecord{},
	&entities.AttendanceRecord{},
	&entities.AuditEvent{},
}

// openBorrowIndex allows at most one open loan per (person, book).
const openBorrowIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_borrow_open_unique
ON borrow_records (person_id, person_type, book_id) WHERE status = 'Borrowed'`

type Database struct {
	DB     *gorm.DB
	Driver string
}

// NewDatabase connects to the configured store and applies migrations.
func NewDatabase(cfg config.Database) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", config.DriverSQLite:
		dialector = sqlite.Open(SQLiteDSN(cfg.Path))
	case config.DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires DATABASE_DSN")
		}
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := Open(dialector, logger.Warn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverSQLite
	}
	if driver == config.DriverSQLite {
		log.Printf("Database initialized successfully at %s", cfg.Path)
	} else {
		log.Printf("Database initialized successfully (%s)", driver)
	}

	return &Database{DB: db, Driver: driver}, nil
}

// SQLiteDSN returns a DSN for path that waits on locks and starts write
// transactions immediately, so read-then-write sequences inside a
// transaction are serialized by the database.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate&_foreign_keys=on", path)
}

// Open opens a gorm connection with duplicate-key translation enabled and
// UTC timestamps.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates all tables and the partial unique indexes
// AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.Exec(openBorrowIndex).Error; err != nil {
		return fmt.Errorf("failed to create open borrow index: %w", err)
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
