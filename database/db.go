package database

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con, Cache: nil}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createSubscriberTable(db)
	if err != nil {
		return nil, err
	}
	err = createProductTable(db)
	if err != nil {
		return nil, err
	}
	err = createSubscriberProductTable(db)
	if err != nil {
		return nil, err
	}
	err = createContentFilterTable(db)
	if err != nil {
		return nil, err
	}
	err = createFilterConditionTable(db)
	if err != nil {
		return nil, err
	}
	err = createDeliveryQueueTable(db)
	if err != nil {
		return nil, err
	}
	err = createSubscriberSequenceTable(db)
	if err != nil {
		return nil, err
	}
	err = createPackageRefTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// createSubscriberTable creates a PostgreSQL table for the Subscriber struct
func createSubscriberTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS subscribers (
			id SERIAL PRIMARY KEY,
			subscriber_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			subscriber_type TEXT NOT NULL DEFAULT 'all',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			email TEXT,
			sequence_num_settings JSONB,
			critical_errors JSONB,
			global_filters JSONB,
			codes TEXT,
			destinations JSONB NOT NULL DEFAULT '[]',
			last_closed JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createProductTable creates a PostgreSQL table for the Product struct
func createProductTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id SERIAL PRIMARY KEY,
			product_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			codes TEXT,
			geo_restrictions TEXT,
			content_filter JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

func createSubscriberProductTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS subscriber_products (
			subscriber_id TEXT NOT NULL REFERENCES subscribers(subscriber_id),
			product_id TEXT NOT NULL REFERENCES products(product_id),
			PRIMARY KEY (subscriber_id, product_id)
		)
	`)
	log.Println(err)
	return err
}

// createContentFilterTable creates a PostgreSQL table for the ContentFilter struct
func createContentFilterTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS content_filters (
			id SERIAL PRIMARY KEY,
			filter_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			is_global BOOLEAN NOT NULL DEFAULT FALSE,
			statements JSONB NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createFilterConditionTable creates a PostgreSQL table for the FilterCondition struct
func createFilterConditionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS filter_conditions (
			id SERIAL PRIMARY KEY,
			condition_id TEXT NOT NULL UNIQUE,
			name TEXT,
			field TEXT NOT NULL,
			operator TEXT NOT NULL,
			value JSONB NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	log.Println(err)
	return err
}

// createDeliveryQueueTable creates a PostgreSQL table for the QueueItem struct
func createDeliveryQueueTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS delivery_queue (
			id SERIAL PRIMARY KEY,
			queue_id TEXT NOT NULL UNIQUE,
			item_id TEXT NOT NULL,
			item_version INT NOT NULL,
			subscriber_id TEXT NOT NULL REFERENCES subscribers(subscriber_id),
			destination JSONB NOT NULL,
			formatted_item TEXT,
			encoded_item_id TEXT,
			published_seq_num INT,
			publishing_action TEXT NOT NULL,
			codes TEXT[],
			content_type TEXT,
			headline TEXT,
			unique_name TEXT,
			associated_items TEXT[],
			state TEXT NOT NULL DEFAULT 'pending',
			retry_attempt INT NOT NULL DEFAULT 0,
			next_retry_attempt_at TIMESTAMP,
			error_message TEXT,
			publish_schedule TIMESTAMP,
			transmit_started_at TIMESTAMP,
			completed_at TIMESTAMP,
			moved_to_legal BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating delivery_queue table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_state ON delivery_queue (state, next_retry_attempt_at);
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_item ON delivery_queue (item_id, item_version);
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_subscriber ON delivery_queue (subscriber_id)
	`)
	log.Println(err)
	return err
}

// createSubscriberSequenceTable creates the per-subscriber sequence counters
func createSubscriberSequenceTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS subscriber_sequences (
			subscriber_id TEXT PRIMARY KEY REFERENCES subscribers(subscriber_id),
			seq_num INT NOT NULL
		)
	`)
	log.Println(err)
	return err
}

// createPackageRefTable records the item references carried by each delivered
// package version, so a correction can be diffed against what went out before.
func createPackageRefTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS package_refs (
			item_id TEXT NOT NULL,
			item_version INT NOT NULL,
			resid_refs TEXT[] NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (item_id, item_version)
		)
	`)
	log.Println(err)
	return err
}
