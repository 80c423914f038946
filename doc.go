// Package folio is the Composition Root for the Folio document system.
//
// It connects the document registry, the document system and the change
// watcher with the filesystem adapters.
//
// Philosophy:
//
// An editor should never silently lose work to the disk, nor the disk to the
// editor. Folio keeps one Document per canonical path, writes atomically and
// reconciles every external change through a PromptHandler: the user (or a
// policy) decides whether to reload, ignore, save elsewhere or close.
//
// Features:
//
//   - **Single Ownership**: A path is open in at most one document.
//   - **Self-Save Guard**: The system's own writes never come back as conflicts.
//   - **Debounced Reconciliation**: Bursts of events collapse into one decision.
//   - **Content Fingerprints**: Touching a file without changing it is not a conflict.
//   - **Batch Prompts**: Several pending conflicts are asked in order, with Close All.
//
// Usage:
//
//	rt, err := folio.New(
//		folio.WithPromptHandler(prompt.NewTerminal(os.Stdin, os.Stdout)),
//		folio.WithLogger(logger),
//	)
//	if err := rt.Start(ctx); err != nil { ... }
//	defer rt.Shutdown(ctx)
//
//	doc, err := rt.System.Open(ctx, "notes.txt", "")
package folio
