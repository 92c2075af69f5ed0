package main

import (
	"flag"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080/health -interval=5s
func main() {
	url := flag.String("url", "http://localhost:8080/health", "the URL that must answer with status OK")
	interval := flag.Duration("interval", 5*time.Second, "the time between two attempts")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var totalWaitTime time.Duration
	for !isAvailable(*url, logger) {
		totalWaitTime += *interval
		logger.Info("waiting", zap.Duration("total", totalWaitTime))
		time.Sleep(*interval)
	}
	logger.Info("available", zap.String("url", *url))
}

// isAvailable returns true if a GET request for the URL is answered with the OK status code.
func isAvailable(url string, logger *zap.Logger) bool {
	res, err := http.Get(url)
	if err != nil {
		logger.Info("not reachable", zap.Error(err))
		return false
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		logger.Info("not ready", zap.Int("status", res.StatusCode))
		return false
	}
	return true
}
