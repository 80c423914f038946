package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/folio"
	"github.com/aretw0/folio/pkg/prompt"
)

var (
	checkJSON    bool
	checkDiagram bool
)

type checkResult struct {
	Path        string   `json:"path"`
	Type        string   `json:"type,omitempty"`
	Fingerprint string   `json:"fingerprint"`
	ReadOnly    bool     `json:"read_only"`
	Filters     []string `json:"filters"`
	Error       string   `json:"error,omitempty"`
}

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Show how folio sees files: type, fingerprint and dialog filters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, diagram, err := runCheck(cmd.Context(), args)
		if err != nil {
			return err
		}
		if checkDiagram {
			_, err := fmt.Fprint(cmd.OutOrStdout(), diagram)
			return err
		}
		return printCheck(cmd.OutOrStdout(), results)
	},
}

// runCheck opens every file, describes it and closes it again. The diagram
// is taken while all of them are open.
func runCheck(ctx context.Context, files []string) ([]checkResult, string, error) {
	logger := slog.Default()
	rt, err := folio.New(cfg.options(logger, prompt.KeepPolicy(logger), false)...)
	if err != nil {
		return nil, "", err
	}
	defer rt.Shutdown(ctx)

	results := make([]checkResult, 0, len(files))
	for _, path := range files {
		doc, err := rt.System.Open(ctx, path, "")
		if err != nil {
			results = append(results, checkResult{Path: path, Error: err.Error()})
			continue
		}
		res := checkResult{
			Path:        doc.Path,
			Type:        doc.TypeID,
			Fingerprint: doc.Fingerprint.String(),
			ReadOnly:    doc.ReadOnly,
		}
		if dialog, err := rt.System.SaveAsDialogConfig(doc.ID); err == nil {
			for _, f := range dialog.Filters {
				res.Filters = append(res.Filters, f.String())
			}
		}
		results = append(results, res)
	}

	diagram := rt.System.Diagram()
	for _, doc := range rt.System.Documents() {
		_ = rt.System.CloseSilently(doc.ID)
	}
	return results, diagram, nil
}

func printCheck(w io.Writer, results []checkResult) error {
	if checkJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: %s\n", r.Path, r.Error)
			continue
		}
		typ := r.Type
		if typ == "" {
			typ = "-"
		}
		mode := "rw"
		if r.ReadOnly {
			mode = "ro"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Path, typ, mode, r.Fingerprint, strings.Join(r.Filters, "; "))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output in JSON format")
	checkCmd.Flags().BoolVar(&checkDiagram, "diagram", false, "Print the opened documents as a Mermaid diagram")
}
