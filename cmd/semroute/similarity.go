package semroute

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/semroute/pkg/utils"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity <text> <text>",
	Short: "Print the cosine similarity of two texts",
	Args:  cobra.ExactArgs(2),
	RunE:  runSimilarity,
}

var similarityRoutes string

func init() {
	rootCmd.AddCommand(similarityCmd)

	similarityCmd.Flags().StringVar(&similarityRoutes, "routes", "", "YAML route file used to fit the TF-IDF encoder")
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	s, err := buildEncoder(similarityRoutes)
	if err != nil {
		return err
	}
	defer s.Close()

	vectors, err := s.encoder.Encode(cmd.Context(), args)
	if err != nil {
		s.log.ErrorContext(cmd.Context(), "Similarity failed", "encoder", s.encoder.Name(), "error", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", utils.CosineSimilarity(vectors[0], vectors[1]))
	return nil
}
