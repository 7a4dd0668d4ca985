// Package cli wires the labdesk commands.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mind-engage/labdesk/internal/config"
)

type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	cfg     config.Config
}

// NewRootCommand builds the labdesk command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "labdesk",
		Short: "Lab-course scoring desk",
		Long: `labdesk keeps a grader's per-exercise score sheet in sync with the
lab-course backend. It serves the scoring API for the browser UI and offers
the same edits from the command line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.v, opts.cfgFile, opts.envFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	pf.String("lab-url", "", "lab-course backend base URL")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("journal-driver", "", "memory, sqlite, postgres or mysql")
	pf.String("journal-dsn", "", "journal data source name")
	_ = opts.v.BindPFlag("lab_api_url", pf.Lookup("lab-url"))
	_ = opts.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = opts.v.BindPFlag("journal_driver", pf.Lookup("journal-driver"))
	_ = opts.v.BindPFlag("journal_dsn", pf.Lookup("journal-dsn"))

	root.AddCommand(newServeCommand(opts), newScoresCommand(opts), newHistoryCommand(opts))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
