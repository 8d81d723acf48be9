package main

import (
	"github.com/spf13/cobra"
)

var (
	dealsMatches string
	dealsLimit   int
)

var dealsCmd = &cobra.Command{
	Use:   "deals",
	Short: "List stored deals ranked by savings",
	RunE:  runDeals,
}

var (
	clearCatalog string
	clearMatches string
	clearLinks   string
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document in the catalog, match and link collections",
	RunE:  runClear,
}

func init() {
	dealsCmd.Flags().StringVar(&dealsMatches, "matches", "", "Match collection (defaults to store.match_collection)")
	dealsCmd.Flags().IntVar(&dealsLimit, "limit", 0, "Maximum deals to list (0 for 100)")

	clearCmd.Flags().StringVar(&clearCatalog, "catalog", "", "Catalog collection (defaults to store.catalog_collection)")
	clearCmd.Flags().StringVar(&clearMatches, "matches", "", "Match collection (defaults to store.match_collection)")
	clearCmd.Flags().StringVar(&clearLinks, "links", "", "Link collection (defaults to store.link_collection)")

	rootCmd.AddCommand(dealsCmd)
	rootCmd.AddCommand(clearCmd)
}

func runDeals(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	deals, err := a.services.Indexer.ListDeals(cmd.Context(), orDefault(dealsMatches, a.collections.Matches), dealsLimit)
	if err != nil {
		return err
	}
	return printReport(map[string]any{"count": len(deals), "deals": deals})
}

func runClear(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.services.Catalog.Clear(cmd.Context(),
		orDefault(clearCatalog, a.collections.Catalog),
		orDefault(clearMatches, a.collections.Matches),
		orDefault(clearLinks, a.collections.Links),
	)
	if err != nil {
		return err
	}
	return printReport(map[string]any{"deleted": deleted})
}
