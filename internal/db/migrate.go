package db

import (
	"collector_hub/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Models lists every table owned by the service
func Models() []any {
	return []any{
		&domain.Profile{},
		&domain.UserCard{},
		&domain.CardCache{},
		&domain.Listing{},
		&domain.Offer{},
		&domain.ListingMessage{},
		&domain.Order{},
		&domain.Wallet{},
		&domain.Transaction{},
		&domain.Message{},
		&domain.Gift{},
		&domain.Follow{},
		&domain.Post{},
		&domain.TournamentEvent{},
		&domain.EventRegistration{},
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}
	logrus.WithField("tables", len(Models())).Info("Migration completed.")
	return nil
}
