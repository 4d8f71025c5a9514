package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/fundval/internal/config"
	"github.com/aristath/fundval/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens both databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. fundval.db - fund metadata, holdings, relationships, archive
	fundvalDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "fundval.db"),
		Profile: database.ProfileStandard,
		Name:    "fundval",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fundval database: %w", err)
	}
	container.FundvalDB = fundvalDB

	// 2. client_data.db - expendable API caches
	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		fundvalDB.Close()
		return nil, fmt.Errorf("failed to initialize client_data database: %w", err)
	}
	container.ClientDataDB = clientDataDB

	for _, db := range []*database.DB{fundvalDB, clientDataDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
