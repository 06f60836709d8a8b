package semroute

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/semroute/pkg/server/dto"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [text...]",
	Short: "Encode texts into vectors",
	Long: `Encode texts with the configured encoder and print the vectors as JSON.

Texts are taken from the arguments, or one per line from --file ("-" reads stdin).
The TF-IDF encoder is fitted on the route file given by --routes.`,
	RunE: runEncode,
}

var (
	encodeRoutes string
	encodeFile   string
	encodePretty bool
)

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVar(&encodeRoutes, "routes", "", "YAML route file used to fit the TF-IDF encoder")
	encodeCmd.Flags().StringVar(&encodeFile, "file", "", "read texts from a file, one per line (\"-\" for stdin)")
	encodeCmd.Flags().BoolVar(&encodePretty, "pretty", false, "indent JSON output")
}

func runEncode(cmd *cobra.Command, args []string) error {
	texts := args
	if encodeFile != "" {
		lines, err := readLines(cmd.InOrStdin(), encodeFile)
		if err != nil {
			return err
		}
		texts = append(texts, lines...)
	}
	if len(texts) == 0 {
		return fmt.Errorf("no texts to encode")
	}

	s, err := buildEncoder(encodeRoutes)
	if err != nil {
		return err
	}
	defer s.Close()

	embeddings, err := s.encoder.Encode(cmd.Context(), texts)
	if err != nil {
		s.log.ErrorContext(cmd.Context(), "Encode failed", "encoder", s.encoder.Name(), "error", err)
		return err
	}

	resp := dto.EncodeResponse{
		Encoder:    s.encoder.Name(),
		Embeddings: embeddings,
	}
	if len(embeddings) > 0 {
		resp.Dimensions = len(embeddings[0])
	}

	out := json.NewEncoder(cmd.OutOrStdout())
	if encodePretty {
		out.SetIndent("", "  ")
	}
	return out.Encode(resp)
}

// readLines returns the non-blank lines of path, or of stdin when path is "-".
func readLines(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), dto.MaxDocumentLength)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read texts: %w", err)
	}
	return lines, nil
}
