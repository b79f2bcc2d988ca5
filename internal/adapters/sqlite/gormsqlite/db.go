package gormsqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	gormdriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// DB keeps separate reader and writer pools over the same file. The writer
// holds a single connection, so every write transaction is serialized by
// the pool rather than by SQLITE_BUSY retries.
type DB struct {
	R *gorm.DB
	W *gorm.DB
}

type Tx struct {
	*gorm.DB
}

type cbfn func(tx *Tx) error

func (db *DB) ReadTX(ctx context.Context, fn cbfn) error {
	return db.R.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	}, &sql.TxOptions{ReadOnly: true})
}

func (db *DB) WriteTX(ctx context.Context, fn cbfn) error {
	return db.W.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Tx{DB: tx})
	})
}

func (db *DB) WriteSQLDB() (*sql.DB, error) {
	return db.W.DB()
}

func (db *DB) Close() error {
	var firstErr error
	for _, g := range []*gorm.DB{db.R, db.W} {
		if err := closeGORM(g); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ io.Closer = (*DB)(nil)

type Options struct {
	Log           logrus.FieldLogger
	SlowThreshold time.Duration
	// Debug logs every statement instead of slow ones only.
	Debug bool
}

func Open(file string, opts Options) (*DB, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = time.Second
	}
	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}
	gormLogger := logger.New(
		opts.Log.WithField("component", "gorm"),
		logger.Config{
			SlowThreshold:             opts.SlowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	reader, err := openPool(buildDSN(file, true), gormLogger)
	if err != nil {
		return nil, fmt.Errorf("open read db: %w", err)
	}
	writer, err := openPool(buildDSN(file, false), gormLogger)
	if err != nil {
		_ = closeGORM(reader)
		return nil, fmt.Errorf("open write db: %w", err)
	}

	rdb, err := reader.DB()
	if err != nil {
		_ = closeGORM(reader)
		_ = closeGORM(writer)
		return nil, fmt.Errorf("reader sql db: %w", err)
	}
	wdb, err := writer.DB()
	if err != nil {
		_ = closeGORM(reader)
		_ = closeGORM(writer)
		return nil, fmt.Errorf("writer sql db: %w", err)
	}

	rdb.SetMaxOpenConns(runtime.NumCPU())
	rdb.SetMaxIdleConns(runtime.NumCPU())
	rdb.SetConnMaxLifetime(0)
	rdb.SetConnMaxIdleTime(0)

	wdb.SetMaxOpenConns(1)
	wdb.SetMaxIdleConns(1)
	wdb.SetConnMaxLifetime(0)
	wdb.SetConnMaxIdleTime(0)

	return &DB{R: reader, W: writer}, nil
}

func openPool(dsn string, l logger.Interface) (*gorm.DB, error) {
	return gorm.Open(gormdriver.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		PrepareStmt: true,
		Logger:      l,
	})
}

// buildDSN puts the pragmas in the connection string so the driver applies
// them to every pooled connection, not only the first one.
func buildDSN(file string, readOnly bool) string {
	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
		"cache_size(-20000)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
		"trusted_schema(OFF)",
	}
	if readOnly {
		pragmas = append(pragmas, "query_only(1)")
	} else {
		pragmas = append(pragmas, "query_only(0)")
	}

	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	query := strings.Join(params, "&")

	sep := "?"
	if strings.Contains(file, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(file, "file:") + sep + query
}

func closeGORM(g *gorm.DB) error {
	if g == nil {
		return nil
	}
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
