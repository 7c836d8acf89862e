package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mehmetkoksal-w/paired/internal/config"
)

func newInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create .paired/ with a default config and schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := filepath.Abs(a.root)
			if err != nil {
				return err
			}
			dir, err := config.EnsureLayout(root)
			if err != nil {
				return err
			}
			if err := config.CopySchemas(root); err != nil {
				return err
			}
			path := filepath.Join(dir, "config.json")
			if existing := config.Find(root); existing != "" {
				if !force {
					fmt.Fprintf(a.errOut, "Keeping existing %s (use --force to overwrite)\n", existing)
					return nil
				}
				if existing != path {
					return fmt.Errorf("%s takes precedence over config.json; remove it before forcing", existing)
				}
			}
			if err := config.WriteJSON(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "Initialized %s\n", dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}
