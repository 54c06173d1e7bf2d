package postgres

import "github.com/Badsnus/mediashare-bot/internal/domain/entity"

// Migrations is a list of all gorm migrations for the database.
var Migrations = []interface{}{
	&entity.Entitlement{},
	&entity.Payment{},
}
