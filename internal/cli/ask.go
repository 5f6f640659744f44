package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"logbook/internal/domain"
	"logbook/internal/usecase"
)

var (
	askQueries []string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask questions about your notes",
	Long: `Answer one or more questions from the logged notes. Several -q flags are
answered concurrently.

Examples:
  logbook ask -q "how often did I run in May?"
  logbook ask -q "what did I eat yesterday?" -q "how did I sleep this week?" --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringArrayVarP(&askQueries, "query", "q", nil, "question (repeatable, required)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	orch, err := buildOrchestrator(st, registry)
	if err != nil {
		return err
	}

	results, err := usecase.NewAskUseCase(orch, GetConfig().Orchestrator.Concurrency).AskMany(ctx, askQueries)
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
	} else {
		for i, r := range results {
			if len(results) > 1 {
				fmt.Printf("--- [%d] %s ---\n", i+1, r.Query)
			}
			if r.Err != nil {
				fmt.Printf("error: %v\n\n", r.Err)
				continue
			}
			printAnswer(r.Result)
		}
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(results))
	}
	return nil
}

func printAnswer(res domain.QueryResult) {
	fmt.Println(res.Response)
	fmt.Println()
	status := "complete"
	if res.Partial {
		status = "partial"
	}
	fmt.Printf("confidence: %.1f (%s), sources: %d\n\n", res.Confidence, status, len(res.Sources))
}
