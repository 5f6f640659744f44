package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"logbook/internal/usecase"
)

var logDate string

var logCmd = &cobra.Command{
	Use:   "log [text]",
	Short: "Add a note",
	Long: `Add a dated note. Without arguments the note is read from stdin.

Examples:
  logbook log "ran 5k along the river"
  logbook log --date 2024-05-01 "dentist, all fine"
  echo "slept badly" | logbook log`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().StringVar(&logDate, "date", "", "entry date as YYYY-MM-DD (default today)")
}

func runLog(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	e, err := usecase.NewLogUseCase(st).Log(cmd.Context(), text, logDate)
	if err != nil {
		return err
	}
	fmt.Printf("Logged %s (%s)\n", e.ID, e.Date)
	return nil
}
