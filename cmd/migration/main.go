package main

import (
	"bufio"
	"flag"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/address-book/internal/config"
	"gitlab.com/dirk.krummacker/address-book/internal/store"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 go run main.go -file=../../scripts/database.sql
func main() {
	filePtr := flag.String("file", "database.sql", "the sql file to execute")
	flag.Parse()

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
	db := sqlx.NewDb(sqlDB, "mysql")
	defer db.Close()

	readFile, err := os.Open(*filePtr) // nosemgrep
	if err != nil {
		logger.Fatal("could not open sql file", zap.String("file", *filePtr), zap.Error(err))
	}
	defer readFile.Close()

	statements := splitStatements(bufio.NewScanner(readFile))
	for _, sql := range statements {
		db.MustExec(sql)
	}
	logger.Info("migration finished", zap.String("file", *filePtr), zap.Int("statements", len(statements)))
}

// splitStatements joins the lines of a sql script and splits them into statements, each ending
// with a line that contains ';'. Lines starting with '--' are skipped.
func splitStatements(fileScanner *bufio.Scanner) []string {
	fileScanner.Split(bufio.ScanLines)
	var statements []string
	builder := strings.Builder{}
	for fileScanner.Scan() {
		line := fileScanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString(" ")
		if strings.Contains(line, ";") {
			statements = append(statements, builder.String())
			builder = strings.Builder{}
		}
	}
	return statements
}
