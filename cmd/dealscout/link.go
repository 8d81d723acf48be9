package main

import (
	"github.com/spf13/cobra"

	"github.com/dealscout/backend/internal/usecase"
)

var (
	linkCatalog      string
	linkLinks        string
	linkKeyword      string
	linkLimit        int
	linkRecacheHours int
	linkMaxCalls     int
	linkMinSim       float64
	linkAnyBrand     bool
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link catalog products to their best marketplace listing",
	Long:  "Search the marketplace by title for catalog products whose link record is missing or stale and store the best title match.",
	RunE:  runLink,
}

func init() {
	linkCmd.Flags().StringVar(&linkCatalog, "catalog", "", "Catalog collection (defaults to store.catalog_collection)")
	linkCmd.Flags().StringVar(&linkLinks, "links", "", "Link collection (defaults to store.link_collection)")
	linkCmd.Flags().StringVar(&linkKeyword, "kw", "", "Only link products whose title matches this pattern")
	linkCmd.Flags().IntVar(&linkLimit, "limit", 0, "Maximum catalog products to consider")
	linkCmd.Flags().IntVar(&linkRecacheHours, "recache-hours", 0, "Re-check links older than this many hours")
	linkCmd.Flags().IntVar(&linkMaxCalls, "max-calls", 0, "Maximum marketplace searches for this run")
	linkCmd.Flags().Float64Var(&linkMinSim, "min-similarity", 0, "Similarity threshold (defaults to matching.min_similarity)")
	linkCmd.Flags().BoolVar(&linkAnyBrand, "any-brand", false, "Do not require the brand in the listing title")

	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	req := usecase.LinkRequest{
		CatalogCollection: orDefault(linkCatalog, a.collections.Catalog),
		LinkCollection:    orDefault(linkLinks, a.collections.Links),
		Keyword:           linkKeyword,
		LimitItems:        linkLimit,
		RecacheHours:      linkRecacheHours,
		MaxCalls:          linkMaxCalls,
	}
	if cmd.Flags().Changed("min-similarity") {
		req.MinSimilarity = &linkMinSim
	}
	if linkAnyBrand {
		requireBrand := false
		req.RequireBrand = &requireBrand
	}

	report, err := a.services.Indexer.LinkByTitle(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printReport(report)
}
