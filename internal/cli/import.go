package cli

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"logbook/internal/usecase"
)

var importReplace bool

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import notes from JSON lines",
	Long: `Import notes from a JSON lines file. Each line is an object with a date
(YYYY-MM-DD) and the note under raw_content, content or text. Optional fields: id,
timestamp (RFC 3339), parsed_data.

Examples:
  logbook import notes.jsonl
  logbook import --replace export.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "remove existing entries first")
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if importReplace {
		if err := st.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear entries: %w", err)
		}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan]Importing[reset]"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("lines"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	result, err := usecase.NewLogUseCase(st).Import(cmd.Context(), f, func(lines int) {
		_ = bar.Set(lines)
	})
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported %d entries, skipped %d\n", result.Imported, result.Skipped)
	for _, e := range result.Errors {
		fmt.Printf("  %s\n", e)
	}
	return nil
}
