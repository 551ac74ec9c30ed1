package main

import (
	"os"

	"github.com/atomport/solver/internal/model"
	pgstore "github.com/atomport/solver/internal/store/postgres"
	"github.com/atomport/solver/internal/utils/config"
	"github.com/atomport/solver/internal/utils/logger"
)

func main() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)

	db := pgstore.New(appConfig, logger)

	err := db.AutoMigrate(
		&model.Network{},
		&model.Token{},
		&model.Route{},
		&model.Swap{},
		&model.Transaction{},
		&model.ReservedNonce{},
	)
	if err != nil {
		logger.Error("[main][AutoMigrate] failed to run migrations", map[string]string{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	logger.Info("migrations completed successfully")
}
