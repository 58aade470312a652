package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vgmeter/controller/pkg/broker"
)

func main() {
	listen := flag.String("listen", ":1883", "tcp listen address")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wg := &sync.WaitGroup{}
	_, err := broker.Start(ctx, wg, *listen)
	if err != nil {
		log.Fatal(err)
	}

	wg.Wait()
}
