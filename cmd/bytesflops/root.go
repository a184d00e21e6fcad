package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// defaultConfigName is looked up in the home directory when --config is
// not given.
const defaultConfigName = ".bytesflops.yaml"

// cli holds the state shared by all commands of one invocation.
type cli struct {
	v   *viper.Viper
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "bytesflops",
		Short: "Count bytes moved and flops performed by a program",
		Long: `bytesflops instruments programs with counters for loads, stores,
floating-point and integer operations, calls and branches, then reports
the totals globally, per function or per call stack.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default $HOME/"+defaultConfigName+")")
	pf.Bool("no-color", false, "disable colored output")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	for _, name := range []string{"no-color", "log-level"} {
		_ = c.v.BindPFlag(name, pf.Lookup(name))
	}
	_ = c.v.BindEnv("no-color", "NO_COLOR")

	root.AddCommand(c.runCmd(), c.analyzeCmd(), c.versionCmd())
	return root
}

// init reads configuration and sets up logging for the executing command.
func (c *cli) init(cmd *cobra.Command) error {
	c.v.SetEnvPrefix("BF")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := bindInstrumentFlags(c.v, cmd.Flags()); err != nil {
		return err
	}
	if err := c.readConfig(cmd); err != nil {
		return err
	}
	processGlobalFlags(c.v)

	level, err := zerolog.ParseLevel(c.v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	c.log = newLogger(cmd.ErrOrStderr(), level, c.v.GetBool("no-color"))
	return nil
}

// readConfig loads --config, or the default file in the home directory
// when it exists.
func (c *cli) readConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		home, err := homedir.Dir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, defaultConfigName)
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// bindInstrumentFlags binds every --bf-* flag of fs to the viper key
// without the prefix, so BF_BY_FUNC and "by-func:" in a config file both
// set --bf-by-func.
func bindInstrumentFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || !strings.HasPrefix(f.Name, flagPrefix) {
			return
		}
		err = v.BindPFlag(strings.TrimPrefix(f.Name, flagPrefix), f)
	})
	return err
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags(v *viper.Viper) {
	if v.GetBool("no-color") {
		color.NoColor = true
	}
}
