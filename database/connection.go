// backend/database/connection.go
package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql" // MariaDB driver

	"github.com/roadsafety/silent-recall/backend/config"
)

// Store wraps the database connection pool. Every raw, derived, and state
// table is accessed through it; callers construct one Store and pass it by
// reference into each service.
type Store struct {
	db *sql.DB
}

// Connect opens the connection pool and verifies it with a ping.
// An unreachable store is fatal for every caller, so failures surface here.
func Connect(cfg config.DatabaseConfig) (*Store, error) {
	// DSN: username:password@protocol(address)/dbname?param=value
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database: Successfully connected.")
	return &Store{db: db}, nil
}

// Close releases the connection pool. Called on shutdown.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
		log.Println("Database: Connection closed.")
	}
}
