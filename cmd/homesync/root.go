package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/homesync/internal/version"
	"github.com/arthur-debert/homesync/pkg/config"
	"github.com/arthur-debert/homesync/pkg/crontab"
	"github.com/arthur-debert/homesync/pkg/env"
	"github.com/arthur-debert/homesync/pkg/filesystem"
	"github.com/arthur-debert/homesync/pkg/logging"
	"github.com/arthur-debert/homesync/pkg/sync"
)

var (
	verbosity int
	flagOpts  config.Options

	rootCmd = &cobra.Command{
		Use:   "homesync",
		Short: "Reconcile a dotfiles source tree against your home directory",
		Long: `homesync reconciles a version-controlled tree of template files against
a live destination tree (normally your home directory). Each source file
runs through a small line-based preprocessing language before comparison,
and every change is applied atomically or shown as a diff with --dry-run.

Run it with --dry-run first; dry runs never mutate anything.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE:          runSync,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.Flags().StringVar(&flagOpts.Source, "source", ".", "Source tree root")
	rootCmd.Flags().StringVar(&flagOpts.Dest, "dest", "", "Destination tree root (default $HOME)")
	rootCmd.Flags().StringVar(&flagOpts.EnvFile, "env", "", "Environment file")
	rootCmd.Flags().BoolVarP(&flagOpts.DryRun, "dry-run", "n", false, "Show changes as diffs without applying them")
	rootCmd.Flags().BoolVarP(&flagOpts.Backup, "backup", "b", false, "Keep timestamped backups of replaced files")
	rootCmd.Flags().BoolVarP(&flagOpts.Quick, "quick", "q", false, "Skip content comparison when modification times match")
	rootCmd.Flags().Bool("public", false, "Default to public (world-readable) visibility")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(genconfigCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	opts, err := config.Load(flagOpts.Source)
	if err != nil {
		return err
	}

	opts = config.Merge(opts, flagOpts, cmd.Flags().Changed)

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	fsys := filesystem.NewOS()
	environ, err := env.Load(fsys, opts.EnvFile, home)
	if err != nil {
		return err
	}

	ct := crontab.NewSystem(opts.CrontabRemoveCommand)
	engine, err := sync.New(fsys, opts, environ, ct, os.Stdout)
	if err != nil {
		return err
	}
	return engine.Run()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("homesync version %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
	},
}
