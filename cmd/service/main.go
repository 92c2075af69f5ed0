package main

import (
	"gitlab.com/dirk.krummacker/address-book/internal/config"
	"gitlab.com/dirk.krummacker/address-book/internal/service"
	"gitlab.com/dirk.krummacker/address-book/internal/store"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > PORT=8080 DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF LOG_MODE=production go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := config.NewLogger(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sqlDB, err := store.CreateDatabase(cfg.DSN())
	if err != nil {
		logger.Fatal("could not open database", zap.Error(err))
	}
	contacts, err := store.New(sqlDB)
	if err != nil {
		logger.Fatal("could not set up the store", zap.Error(err))
	}
	defer contacts.Close()

	router := service.New(contacts, logger).SetupHttpRouter(cfg.GinLogging)
	logger.Info("starting contacts service", zap.String("addr", cfg.Addr()), zap.String("dbhost", cfg.DBHost))
	if err := router.Run(cfg.Addr()); err != nil {
		logger.Fatal("contacts service stopped", zap.Error(err))
	}
}
