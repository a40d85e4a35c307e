package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ironsheep/courtcal/internal/config"
	"github.com/ironsheep/courtcal/internal/court"
)

func newSurfacesCommand(a *app) *cobra.Command {
	var keypoints bool

	cmd := &cobra.Command{
		Use:   "surfaces",
		Short: "Print the effective detection profiles as YAML",
		Long: `Print the per-surface detection profiles after configuration overrides.
The output can be pasted under "profiles:" in courtcal.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keypoints {
				return config.WriteYAML(cmd.OutOrStdout(), map[string]interface{}{
					"profiles":  a.cfg.Profiles,
					"keypoints": court.Keypoints(),
				})
			}
			return config.WriteYAML(cmd.OutOrStdout(), a.cfg.Profiles)
		},
	}

	cmd.Flags().BoolVar(&keypoints, "keypoints", false, "also print the world keypoint table")
	return cmd
}
