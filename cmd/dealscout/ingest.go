package main

import (
	"github.com/spf13/cobra"

	"github.com/dealscout/backend/internal/usecase"
)

var (
	ingestQuery      string
	ingestPages      int
	ingestMax        int
	ingestCollection string
	ingestIndex      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest marketplace search results into the catalog",
	Long:  "Fetch marketplace search pages for a query and store every single-unit listing as a catalog product. With --index, score the catalog afterwards.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestQuery, "query", "q", "", "Marketplace search query (required)")
	ingestCmd.Flags().IntVarP(&ingestPages, "pages", "p", 1, "Number of result pages to fetch (1-10)")
	ingestCmd.Flags().IntVar(&ingestMax, "max", 100, "Maximum products to store")
	ingestCmd.Flags().StringVarP(&ingestCollection, "collection", "c", "", "Catalog collection (defaults to store.catalog_collection)")
	ingestCmd.Flags().BoolVar(&ingestIndex, "index", false, "Index deals for the catalog after ingesting")

	ingestCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.services.Catalog.Ingest(cmd.Context(), usecase.IngestRequest{
		Query:       ingestQuery,
		Pages:       ingestPages,
		MaxProducts: ingestMax,
		Collection:  orDefault(ingestCollection, a.collections.Catalog),
	})
	if err != nil {
		return err
	}
	if !ingestIndex {
		return printReport(report)
	}

	index, err := a.services.Indexer.IndexDeals(cmd.Context(), usecase.IndexDealsRequest{
		CatalogCollection: report.Collection,
		MatchCollection:   a.collections.Matches,
	})
	if err != nil {
		return err
	}
	return printReport(map[string]any{"ingest": report, "index": index})
}
