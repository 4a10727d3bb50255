package migrations

import (
	"gorm.io/gorm"

	"mosaic/internal/models"
)

// All returns every registered migration in version order:
// - 001: Schema creation using GORM AutoMigrate
// - 002: Seed system stream profiles and user agents
func All() []Migration {
	return []Migration{
		migration001Schema(),
		migration002SeedDefaults(),
	}
}

// migration001Schema creates all database tables using GORM AutoMigrate.
func migration001Schema() Migration {
	return Migration{
		Version:     "001",
		Description: "create initial schema",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Channel{},
				&models.StreamProfile{},
				&models.UserAgent{},
				&models.MultiviewLayout{},
			)
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.MultiviewLayout{},
				&models.UserAgent{},
				&models.StreamProfile{},
				&models.Channel{},
			)
		},
	}
}

// migration002SeedDefaults seeds the system passthrough profile and a default
// user agent. Both are created active so a fresh install can play streams
// without further setup.
func migration002SeedDefaults() Migration {
	return Migration{
		Version:     "002",
		Description: "seed system stream profiles and user agents",
		Up: func(tx *gorm.DB) error {
			profiles := []models.StreamProfile{
				{
					Name:        "passthrough",
					Description: "Play the upstream URL directly without a transcoder process",
					Passthrough: true,
					IsSystem:    true,
					IsActive:    true,
				},
				{
					Name:        "ffmpeg-mpegts",
					Description: "Remux to MPEG-TS via ffmpeg without re-encoding",
					IsSystem:    true,
					CommandTemplate: "ffmpeg -hide_banner -loglevel error -user_agent {userAgent} " +
						"-i {streamUrl} -c copy -f mpegts pipe:1",
				},
			}
			for i := range profiles {
				var count int64
				if err := tx.Model(&models.StreamProfile{}).
					Where("name = ?", profiles[i].Name).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}
				if err := tx.Create(&profiles[i]).Error; err != nil {
					return err
				}
			}

			agents := []models.UserAgent{
				{
					Name:     "default",
					Value:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
					IsSystem: true,
					IsActive: true,
				},
				{
					Name:     "vlc",
					Value:    "VLC/3.0.20 LibVLC/3.0.20",
					IsSystem: true,
				},
			}
			for i := range agents {
				var count int64
				if err := tx.Model(&models.UserAgent{}).
					Where("name = ?", agents[i].Name).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}
				if err := tx.Create(&agents[i]).Error; err != nil {
					return err
				}
			}

			return nil
		},
		Down: func(tx *gorm.DB) error {
			if err := tx.Where("is_system = ?", true).Delete(&models.StreamProfile{}).Error; err != nil {
				return err
			}
			return tx.Where("is_system = ?", true).Delete(&models.UserAgent{}).Error
		},
	}
}
