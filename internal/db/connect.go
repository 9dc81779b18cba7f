// Package db opens the journal database and migrates its schema.
package db

import (
	"fmt"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/wallboard/internal/config"
)

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}

// DSN builds a MySQL DSN. An empty database yields a server-level DSN.
func DSN(c config.MySQLConfig, database string) string {
	dc := gomysql.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	dc.DBName = database
	dc.ParseTime = true
	return dc.FormatDSN()
}

// Open connects to the journal database selected by cfg.
func Open(cfg config.JournalConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return ConnectSQLite(cfg.Path)
	case "mysql":
		admin, err := ConnectMySQL(cfg.MySQL, "")
		if err != nil {
			return nil, err
		}
		err = CreateDatabase(admin, cfg.MySQL.Database)
		closeDB(admin)
		if err != nil {
			return nil, err
		}
		return ConnectMySQL(cfg.MySQL, cfg.MySQL.Database)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// ConnectSQLite opens a SQLite database at path (":memory:" for a private
// in-memory database).
func ConnectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	// Every pooled connection to :memory: is its own database, and SQLite
	// allows a single writer anyway.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// ConnectMySQL opens a GORM connection to a MySQL server.
func ConnectMySQL(c config.MySQLConfig, database string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(c, database)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", c.Host, c.Port, database, err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	_ = Close(db)
}
