package main

import (
	"github.com/spf13/cobra"

	"github.com/dealscout/backend/internal/usecase"
)

var (
	indexCatalog     string
	indexMatches     string
	indexLimit       int
	indexConcurrency int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Score catalog products against shopping offers",
	Long:  "Search shopping offers for every catalog product without a stored match and store the scored deals, hit or miss.",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexCatalog, "catalog", "", "Catalog collection (defaults to store.catalog_collection)")
	indexCmd.Flags().StringVar(&indexMatches, "matches", "", "Match collection (defaults to store.match_collection)")
	indexCmd.Flags().IntVar(&indexLimit, "limit", 0, "Maximum catalog products to consider (0 for the default)")
	indexCmd.Flags().IntVar(&indexConcurrency, "concurrency", 0, "Parallel searches (0 for indexing.concurrency)")

	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.services.Indexer.IndexDeals(cmd.Context(), usecase.IndexDealsRequest{
		CatalogCollection: orDefault(indexCatalog, a.collections.Catalog),
		MatchCollection:   orDefault(indexMatches, a.collections.Matches),
		LimitItems:        indexLimit,
		Concurrency:       indexConcurrency,
	})
	if err != nil {
		return err
	}
	return printReport(report)
}
