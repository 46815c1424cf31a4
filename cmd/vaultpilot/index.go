package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	vaultcontext "github.com/vaultpilot/vaultpilot/pkg/context"
)

// IndexCmd walks the vault and (re)builds the retrieval index.
type IndexCmd struct {
	Watch bool `help:"Keep watching the vault for changes after the initial pass."`
}

func (c *IndexCmd) Run(cli *CLI) error {
	cfg, closeLog, err := cli.loadConfig()
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.Vault == "" {
		return fmt.Errorf("indexing requires a vault directory in the config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	store, err := openDocumentStore(cfg)
	if err != nil {
		return err
	}

	watcher, err := vaultcontext.NewVaultWatcher(cfg.Vault, store)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.IndexAll(ctx); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Printf("Indexed %d notes from %s\n", store.Count(), cfg.Vault)

	if c.Watch {
		fmt.Println("Watching for changes. Ctrl-C to stop.")
		watcher.Watch(ctx)
	}
	return nil
}
