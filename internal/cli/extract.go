package cli

import (
	"encoding/json"

	"aiquiz-service/internal/config"
	"aiquiz-service/internal/extract"
	"aiquiz-service/internal/logger"
	"github.com/spf13/cobra"
)

// NewExtractCmd prints the text extracted from a URL as JSON.
func NewExtractCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract lesson text from a YouTube video or web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			content, err := newExtractor(cfg, log).Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(content)
		},
	}
}
