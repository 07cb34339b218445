package daemon

import (
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/irvingleonard/go-okta-client/internal/config"
	"github.com/irvingleonard/go-okta-client/internal/db/controller/user"
	"github.com/irvingleonard/go-okta-client/internal/db/models"
)

func seed(_ *config.Config, db *gorm.DB) {
	// Seed initial data if user table is empty

	var count int64
	db.Model(&models.User{}).Count(&count)

	if count == 0 {
		// Create default admin user, change the password on first login
		if _, err := user.CreateSuperuser(db, "admin", "", "changeme"); err != nil {
			log.Error().Err(err).Msg("failed to seed admin user")
			return
		}

		log.Info().Msg("seeded default admin user")
	}
}
