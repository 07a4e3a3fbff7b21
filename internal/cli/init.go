package cli

import (
	"fmt"

	"github.com/ppiankov/guardscan/internal/config"
	"github.com/spf13/cobra"
)

var (
	initPath  string
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Init writes a commented guardscan.yaml with every setting at its default.

Without --path the file goes to $XDG_CONFIG_HOME/guardscan/guardscan.yaml
(or ~/.config/guardscan/guardscan.yaml). An existing file is kept unless
--force is given.

Example:
  guardscan init
  guardscan init --path ./guardscan.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initPath, "path", "",
		"where to write the config (default: user config directory)")
	initCmd.Flags().BoolVar(&initForce, "force", false,
		"overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := initPath
	if path == "" {
		path = config.ConfigPath()
	}
	if err := config.WriteSampleConfig(path, initForce); err != nil {
		return err
	}
	fmt.Printf("Config written to %s\n", path)
	return nil
}
