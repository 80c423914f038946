package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/folio"
	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/prompt"
)

func main() {
	count := flag.Int("count", 500, "Number of documents to open")
	keep := flag.Bool("keep", false, "Keep the benchmark directory after running")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	// 1. Setup Namespace
	benchDir, err := os.MkdirTemp("", "folio_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	fmt.Printf("Generating %d files in %s...\n", *count, benchDir)
	startGen := time.Now()
	paths := make([]string, *count)
	for i := range paths {
		paths[i] = filepath.Join(benchDir, fmt.Sprintf("doc_%d.txt", i))
		if err := os.WriteFile(paths[i], []byte(fmt.Sprintf("document %d\n", i)), 0644); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	// 2. Initialize Runtime
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	policy, err := prompt.NewPolicy("reload", "close", logger)
	if err != nil {
		panic(err)
	}
	rt, err := folio.New(
		folio.WithLogger(logger),
		folio.WithPromptHandler(policy),
		folio.WithInboxSize(4*(*count)),
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		panic(err)
	}
	defer rt.Shutdown(ctx)

	// Run 1: open everything
	startOpen := time.Now()
	ids := make([]core.DocumentID, len(paths))
	for i, p := range paths {
		doc, err := rt.System.Open(ctx, p, "")
		if err != nil {
			panic(err)
		}
		ids[i] = doc.ID
	}
	openTook := time.Since(startOpen)

	// Run 2: save everything; every notification is our own echo
	startSave := time.Now()
	for _, id := range ids {
		if err := rt.System.SetContent(id, []byte("edited\n")); err != nil {
			panic(err)
		}
		if err := rt.System.Save(ctx, id); err != nil {
			panic(err)
		}
	}
	saveTook := time.Since(startSave)

	// Run 3: change every file behind folio's back and wait for the reloads
	startReconcile := time.Now()
	for _, p := range paths {
		if err := os.WriteFile(p, []byte("external\n"), 0644); err != nil {
			panic(err)
		}
	}
	deadline, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	for {
		reloaded := 0
		for _, doc := range rt.System.Documents() {
			if string(doc.Content) == "external\n" {
				reloaded++
			}
		}
		if reloaded == len(ids) {
			break
		}
		if deadline.Err() != nil {
			fmt.Printf("Timed out with %d/%d reloaded\n", reloaded, len(ids))
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	reconcileTook := time.Since(startReconcile)

	stats := rt.Watcher.Stats()
	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d documents):\n", *count)
	fmt.Printf("  Open:      %v\n", openTook)
	fmt.Printf("  Save:      %v\n", saveTook)
	fmt.Printf("  Reconcile: %v\n", reconcileTook)
	fmt.Printf("  Raw events: %d, suppressed: %d, prompts: %d\n", stats.RawEvents, stats.Suppressed, stats.Prompts)
	fmt.Printf("--------------------------------------------------\n")
}
