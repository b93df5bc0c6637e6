// Package migrations runs named schema steps once per database, in the order
// they were registered.
package migrations

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
)

type namedMigration struct {
	name string
	fn   func(*gorm.DB) error
}

// appliedMigration records a step that already ran.
type appliedMigration struct {
	Name      string    `gorm:"primaryKey;type:varchar(120)"`
	AppliedAt time.Time `gorm:"not null"`
}

func (appliedMigration) TableName() string { return "schema_migrations" }

var (
	registryMu sync.RWMutex
	registry   []namedMigration
)

// Register adds a migration to the registry in FIFO order. Registering the
// same name twice keeps the first one.
func Register(name string, fn func(*gorm.DB) error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, m := range registry {
		if m.name == name {
			return
		}
	}
	registry = append(registry, namedMigration{name: name, fn: fn})
}

// Run executes pending migrations, each inside its own transaction.
func Run(db *gorm.DB, log *slog.Logger) error {
	registryMu.RLock()
	pending := make([]namedMigration, len(registry))
	copy(pending, registry)
	registryMu.RUnlock()

	if len(pending) == 0 {
		if log != nil {
			log.Info("no database migrations registered")
		}
		return nil
	}

	if err := db.AutoMigrate(&appliedMigration{}); err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var applied []string
	if err := db.Model(&appliedMigration{}).Pluck("name", &applied).Error; err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	for _, migration := range pending {
		if _, ok := done[migration.name]; ok {
			continue
		}
		if log != nil {
			log.Info("running migration", slog.String("name", migration.name))
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.fn(tx); err != nil {
				return err
			}
			return tx.Create(&appliedMigration{Name: migration.name, AppliedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.name, err)
		}

		if log != nil {
			log.Info("migration completed", slog.String("name", migration.name))
		}
	}

	return nil
}
