package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driving"
)

var (
	searchLimit  int
	searchRerank bool
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents without generating an answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", false, "apply the domain relevance rerank")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&queryStage, "stage", "", "deal stage for the sales context")
	searchCmd.Flags().StringVar(&querySegment, "segment", "", "customer segment for the sales context")
	searchCmd.Flags().StringVar(&queryUrgency, "urgency", "", "urgency (low, normal, critical)")
	searchCmd.Flags().StringSliceVar(&queryProducts, "products", nil, "product ids narrowing the search")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline not configured")
	}

	results, err := pipelineService.Retrieve(cmd.Context(), driving.QueryRequest{
		TenantID: flagTenant,
		Query:    args[0],
		Sales:    salesContextFromFlags(),
		Limit:    searchLimit,
		Rerank:   searchRerank,
	})
	if err != nil {
		return describeFailure("search", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchResults(cmd, args[0], results)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchResults(cmd *cobra.Command, query string, results []domain.SearchResult) {
	if len(results) == 0 {
		cmd.Printf("No results for %q\n", query)
		return
	}

	cmd.Println(sectionStyle.Render(fmt.Sprintf("Results for %q:", query)))
	cmd.Println()

	for i, res := range results {
		title := res.Document.Title
		if title == "" {
			title = res.Document.ID
		}
		score := fmt.Sprintf("score %.3f", res.RankScore())
		if res.DomainScore != nil {
			score = fmt.Sprintf("score %.3f (similarity %.3f, domain %.2f)",
				res.RankScore(), res.Score, *res.DomainScore)
		}
		cmd.Printf("%d. %s  %s\n", i+1, titleStyle.Render(title), scoreStyle.Render(score))
		if res.Excerpt != "" {
			cmd.Println(excerptStyle.Render(res.Excerpt))
		}
		cmd.Println()
	}
}
