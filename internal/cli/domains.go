package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"logbook/internal/domain"
)

var domainsJSON bool

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List domain modules",
	RunE:  runDomains,
}

func init() {
	rootCmd.AddCommand(domainsCmd)
	domainsCmd.Flags().BoolVar(&domainsJSON, "json", false, "output as JSON")
}

func runDomains(cmd *cobra.Command, args []string) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	var list []domain.AvailableDomain
	for _, m := range registry.List() {
		list = append(list, domain.AvailableDomain{Name: m.Name, Description: m.Description})
	}

	if domainsJSON {
		output, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	if len(list) == 0 {
		fmt.Printf("No domain modules found in %s\n", GetConfig().DomainsDir(GetRootDir()))
		return nil
	}
	for _, d := range list {
		fmt.Printf("%-20s %s\n", d.Name, d.Description)
	}
	return nil
}
