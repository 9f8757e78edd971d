package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/homesync/pkg/config"
)

var genconfigWrite bool

var genconfigCmd = &cobra.Command{
	Use:   "genconfig",
	Short: "Print the default configuration as TOML",
	Long: `Print the built-in default configuration. With --write, save it as
` + config.FileName + ` in the source tree root instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.GenerateDefault()
		if err != nil {
			return err
		}
		if !genconfigWrite {
			fmt.Print(string(out))
			return nil
		}
		path := filepath.Join(flagOpts.Source, config.FileName)
		if err := os.WriteFile(path, out, 0644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	genconfigCmd.Flags().BoolVarP(&genconfigWrite, "write", "w", false, "Write config to the source root instead of stdout")
}
