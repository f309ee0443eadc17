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
	queryLimit    int
	queryRerank   bool
	queryFormat   string
	queryJSON     bool
	queryStage    string
	querySegment  string
	queryUrgency  string
	queryProducts []string
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question against the indexed documents",
	Long: `Retrieves the most relevant chunks for the question and generates a
grounded answer with sources and a confidence estimate.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 10, "maximum number of context chunks")
	queryCmd.Flags().BoolVar(&queryRerank, "rerank", false, "apply the domain relevance rerank")
	queryCmd.Flags().StringVar(&queryFormat, "format", "text", "answer format (text, bullets, email)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	queryCmd.Flags().StringVar(&queryStage, "stage", "", "deal stage for the sales context")
	queryCmd.Flags().StringVar(&querySegment, "segment", "", "customer segment for the sales context")
	queryCmd.Flags().StringVar(&queryUrgency, "urgency", "", "urgency (low, normal, critical)")
	queryCmd.Flags().StringSliceVar(&queryProducts, "products", nil, "product ids narrowing the search")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if pipelineService == nil {
		return errors.New("pipeline not configured")
	}

	answer, err := pipelineService.Query(cmd.Context(), driving.QueryRequest{
		TenantID: flagTenant,
		Query:    args[0],
		Sales:    salesContextFromFlags(),
		Limit:    queryLimit,
		Rerank:   queryRerank,
		Format:   domain.OutputFormat(queryFormat),
	})
	if err != nil {
		return describeFailure("query", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	renderAnswer(cmd, answer)
	return nil
}

// salesContextFromFlags builds the optional sales context. Returns nil
// when no sales flag was set, so reranking and side outputs stay off.
func salesContextFromFlags() *domain.SalesContext {
	if queryStage == "" && querySegment == "" && queryUrgency == "" && len(queryProducts) == 0 {
		return nil
	}
	return &domain.SalesContext{
		DealStage:       queryStage,
		CustomerSegment: querySegment,
		Urgency:         queryUrgency,
		ProductIDs:      queryProducts,
	}
}

func renderAnswer(cmd *cobra.Command, answer *domain.Answer) {
	cmd.Println(answerStyle.Render(answer.Text))
	cmd.Println()
	cmd.Println(scoreStyle.Render(fmt.Sprintf("Confidence: %.0f%%", answer.Confidence*100)))

	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println(sectionStyle.Render("Sources:"))
		for _, src := range answer.Sources {
			title := src.Title
			if title == "" {
				title = src.DocumentID
			}
			cmd.Printf("  - %s\n", title)
		}
	}

	renderList(cmd, "Next steps:", answer.NextSteps)
	renderList(cmd, "Objections:", answer.Objections)
	renderList(cmd, "Upsell hints:", answer.UpsellHints)
}

func renderList(cmd *cobra.Command, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(sectionStyle.Render(heading))
	for _, item := range items {
		cmd.Printf("  - %s\n", item)
	}
}
