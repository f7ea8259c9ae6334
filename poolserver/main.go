package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/solpool/nftpool/config"
	"github.com/solpool/nftpool/poolserver/app"
)

func main() {
	//
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGABRT)
	go shutdown(cancel, quit)
	//
	configFile := config.ConfigFile
	if len(os.Args) == 2 {
		configFile = os.Args[1]
	}
	infoJson, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}
	var cfg config.Config
	err = json.Unmarshal(infoJson, &cfg)
	if err != nil {
		panic(err)
	}
	if cfg.WorkSpace != "" {
		if err := os.Chdir(cfg.WorkSpace); err != nil {
			panic(err)
		}
	}
	server := app.NewServer(ctx, &cfg)
	server.Service()
}

func shutdown(cancel context.CancelFunc, quit <-chan os.Signal) {
	osCall := <-quit
	fmt.Printf("System call: %v, pool server is shutting down......\n", osCall)
	cancel()
}
