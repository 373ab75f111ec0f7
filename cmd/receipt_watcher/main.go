package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"finapi/pkg/bootstrap"
	"finapi/pkg/config"
	"finapi/pkg/receipt"
)

func main() {
	dir := flag.String("dir", "inbox", "directory to scan for receipt images named <user_id>_<name>.<ext>")
	watch := flag.Bool("watch", false, "keep watching the directory for new files")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	lang := flag.String("lang", "", "tesseract language, e.g. eng or ind")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := bootstrap.Logger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Err(ctx, "open store", err)
		os.Exit(1)
	}
	defer st.Close()

	scanner := receipt.NewScanner(receipt.Tesseract{Language: *lang}, log)
	box := receipt.NewInbox(*dir, receipt.NewService(st, scanner, cfg.UploadBase, log), log)
	box.Workers = *workers
	if box.Workers <= 0 {
		box.Workers = runtime.NumCPU()
	}

	if *watch {
		err = box.Watch(ctx)
	} else {
		var n int
		n, err = box.Drain(ctx)
		log.Info("inbox drained", "ingested", n)
	}
	if err != nil {
		log.Err(ctx, "process inbox", err)
		os.Exit(1)
	}
}
