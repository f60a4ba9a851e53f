package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arborhq/lineage/cmd/dedup-worker/worker"
	"github.com/arborhq/lineage/common/bootstrap"
	"github.com/arborhq/lineage/common/db"
	"github.com/arborhq/lineage/common/queue"
	"github.com/arborhq/lineage/common/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "dedup-worker",
		bootstrap.WithDBInitHook(db.InitSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup service: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	components.Logger.Info("dedup-worker starting")

	persons := repository.NewPersonRepository(components.DB)
	relationships := repository.NewRelationshipRepository(components.DB)
	suggestions := repository.NewSuggestionRepository(components.DB)

	w := worker.New(persons, relationships, suggestions, components.Redis, components.Logger)

	if err := components.Queue.Subscribe(ctx, queue.TopicPersonCreated, w.Handle); err != nil {
		components.Logger.Error("failed to subscribe", "topic", queue.TopicPersonCreated, "error", err)
		os.Exit(1)
	}

	components.Logger.Info("dedup-worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	components.Logger.Info("received shutdown signal", "signal", sig)
	cancel()

	components.Logger.Info("dedup-worker shutting down gracefully")
}
