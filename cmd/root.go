// Package cmd implements the sertree command line tool
// for inspecting and editing trees in a store.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jrife/sertree/storage/kv/plugins"
	"github.com/jrife/sertree/storage/tree"
	"github.com/jrife/sertree/utils/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// session holds what the commands of one invocation share
type session struct {
	config *viper.Viper
	db     *tree.DB
	logger *zap.Logger
}

// NewRootCommand builds the sertree command tree. Each call
// returns an independent command with its own configuration.
func NewRootCommand() *cobra.Command {
	s := &session{config: viper.New()}

	root := &cobra.Command{
		Use:   "sertree",
		Short: "inspect and edit typed trees in an ordered kv store",
		Long: `sertree opens a store with one of the supported engines and
reads or writes its trees. Keys and values are parsed and printed
according to --key-type and --value-type so one tree can be viewed
as any pair of types.`,
		SilenceUsage:      true,
		PersistentPreRunE: s.open,
	}

	flags := root.PersistentFlags()
	flags.String("engine", "bbolt", wrap("storage engine ("+strings.Join(plugins.Names(), ", ")+")"))
	flags.String("path", "", wrap("path of the store"))
	flags.String("log-level", "warn", wrap("log level (debug, info, warn, error)"))
	flags.String("key-type", "string", wrap("type of keys ("+strings.Join(typeNames(), ", ")+")"))
	flags.String("value-type", "string", wrap("type of values ("+strings.Join(typeNames(), ", ")+")"))
	flags.Bool("type-tags", false, wrap("record and check the key and value types of each tree"))

	root.AddCommand(
		s.treesCmd(),
		s.lenCmd(),
		s.getCmd(),
		s.putCmd(),
		s.removeCmd(),
		s.dumpCmd(),
		s.popCmd("pop-max", "Removes and prints the entry with the highest key", true),
		s.popCmd("pop-min", "Removes and prints the entry with the lowest key", false),
		s.clearCmd(),
		s.dropCmd(),
		s.statsCmd(),
		s.exportCmd(),
		s.importCmd(),
	)

	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (s *session) open(cmd *cobra.Command, _ []string) error {
	loadConfig(s.config)

	if err := s.config.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	logger, err := log.New(s.config.GetString("log-level"))

	if err != nil {
		return err
	}

	ctx := log.WithLogger(cmd.Context(), logger)
	ctx = log.WithFields(ctx, zap.String("command", cmd.Name()))
	cmd.SetContext(ctx)

	s.logger, _ = log.LoggerFromContext(ctx, logger)

	engine := s.config.GetString("engine")
	db, err := tree.Open(engine, storeOptions(s.config), tree.WithLogger(s.logger), tree.WithTypeTags(s.config.GetBool("type-tags")))

	if err != nil {
		return err
	}

	s.logger.Debug("opened store", zap.String("engine", engine), zap.String("path", s.config.GetString("path")))
	s.db = db

	return nil
}

// run wraps a command so the store is closed even if it fails
func (s *session) run(f func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if closeErr := s.close(); err == nil {
				err = closeErr
			}
		}()

		return f(cmd, args)
	}
}

func (s *session) close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	s.logger.Sync()

	if err != nil {
		return fmt.Errorf("could not close store: %w", err)
	}

	return nil
}
