// cmd/expediente-server/main.go
//
// Runs the in-memory development persistence API. Records live only for the
// lifetime of the process.

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/drvillela/expediente/internal/devserver"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", ":8750", "listen address")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "expediente-server: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	server := devserver.New(logger)
	logger.Info("development persistence API listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, server.Router()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
