package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/tree"
	"github.com/jrife/sertree/utils/stream"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rawEntry = tree.Entry[[]byte, []byte]

func (s *session) formats() (format, format, error) {
	keyFormat, err := lookupFormat(s.config.GetString("key-type"))

	if err != nil {
		return format{}, format{}, err
	}

	valueFormat, err := lookupFormat(s.config.GetString("value-type"))

	if err != nil {
		return format{}, format{}, err
	}

	return keyFormat, valueFormat, nil
}

func (s *session) printEntry(w io.Writer, keyFormat, valueFormat format, entry rawEntry) error {
	key, err := keyFormat.show(entry.Key)

	if err != nil {
		return err
	}

	value, err := valueFormat.show(entry.Value)

	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\t%s\n", key, value)

	return err
}

// keyed opens the tree named by args[0] and parses args[1] as a key
func (s *session) keyed(args []string) (*tree.RelaxedTree, []byte, error) {
	t, err := s.db.OpenRelaxedTree(args[0])

	if err != nil {
		return nil, nil, err
	}

	keyFormat, _, err := s.formats()

	if err != nil {
		return nil, nil, err
	}

	key, err := keyFormat.parse(args[1])

	if err != nil {
		return nil, nil, err
	}

	return t, key, nil
}

func (s *session) treesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trees",
		Short: "Lists all trees",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			names, err := s.db.TreeNames()

			if err != nil {
				return err
			}

			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}

			return nil
		}),
	}
}

func (s *session) lenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "len [tree]",
		Short: "Prints the number of entries in a tree",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			t, err := s.db.OpenRelaxedTree(args[0])

			if err != nil {
				return err
			}

			n, err := t.Len()

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)

			return nil
		}),
	}
}

func (s *session) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [tree] [key]",
		Short: "Prints the value stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			t, key, err := s.keyed(args)

			if err != nil {
				return err
			}

			value, ok, err := tree.Get[[]byte, []byte](t, key)

			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("key %s not found in tree %s", args[1], args[0])
			}

			_, valueFormat, err := s.formats()

			if err != nil {
				return err
			}

			text, err := valueFormat.show(value)

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)

			return nil
		}),
	}
}

func (s *session) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put [tree] [key] [value]",
		Short: "Stores a value under a key and prints the value it replaced",
		Args:  cobra.ExactArgs(3),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			t, key, err := s.keyed(args)

			if err != nil {
				return err
			}

			_, valueFormat, err := s.formats()

			if err != nil {
				return err
			}

			value, err := valueFormat.parse(args[2])

			if err != nil {
				return err
			}

			prev, ok, err := tree.Insert(t, key, value)

			if err != nil || !ok {
				return err
			}

			text, err := valueFormat.show(prev)

			if err != nil {
				s.logger.Warn("replaced a value that does not decode", zap.Error(err))

				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)

			return nil
		}),
	}
}

func (s *session) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [tree] [key]",
		Short: "Removes a key and prints the value it held",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			t, key, err := s.keyed(args)

			if err != nil {
				return err
			}

			prev, ok, err := tree.Remove[[]byte, []byte](t, key)

			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("key %s not found in tree %s", args[1], args[0])
			}

			_, valueFormat, err := s.formats()

			if err != nil {
				return err
			}

			text, err := valueFormat.show(prev)

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)

			return nil
		}),
	}
}

func (s *session) dumpCmd() *cobra.Command {
	var from, to string
	var reverse bool
	var limit int

	cmd := &cobra.Command{
		Use:   "dump [tree]",
		Short: "Prints the entries of a tree in key order",
		Long: `Prints one entry per line as key<TAB>value. --from is inclusive
and --to is exclusive. Both need a key type whose encoding
preserves order.`,
		Args: cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			t, err := s.db.OpenRelaxedTree(args[0])

			if err != nil {
				return err
			}

			keyFormat, valueFormat, err := s.formats()

			if err != nil {
				return err
			}

			if (from != "" || to != "") && !keyFormat.ordered {
				return fmt.Errorf("%s keys: %w", keyFormat.name, tree.ErrUnorderedKeys)
			}

			start, err := bound(keyFormat, from, tree.Included[[]byte])

			if err != nil {
				return err
			}

			end, err := bound(keyFormat, to, tree.Excluded[[]byte])

			if err != nil {
				return err
			}

			order := kv.SortOrderAsc

			if reverse {
				order = kv.SortOrderDesc
			}

			iter, err := tree.RangeKeyBytes[[]byte](t, start, end, order)

			if err != nil {
				return err
			}

			defer iter.Close()

			entries := stream.Pipeline(iter.Stream(), stream.Limit[rawEntry](limit), stream.Log[rawEntry](s.logger))

			for entries.Next() {
				if err := s.printEntry(cmd.OutOrStdout(), keyFormat, valueFormat, entries.Value()); err != nil {
					return err
				}
			}

			return entries.Error()
		}),
	}

	cmd.Flags().StringVar(&from, "from", "", wrap("first key to print"))
	cmd.Flags().StringVar(&to, "to", "", wrap("stop before this key"))
	cmd.Flags().BoolVar(&reverse, "reverse", false, wrap("print in descending key order"))
	cmd.Flags().IntVar(&limit, "limit", 0, wrap("print at most this many entries, 0 means no limit"))

	return cmd
}

func bound(f format, text string, makeBound func([]byte) tree.Bound[[]byte]) (tree.Bound[[]byte], error) {
	if text == "" {
		return tree.Unbounded[[]byte](), nil
	}

	key, err := f.parse(text)

	if err != nil {
		return tree.Bound[[]byte]{}, err
	}

	return makeBound(key), nil
}

func (s *session) popCmd(use string, short string, highest bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [tree]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			t, err := s.db.OpenRelaxedTree(args[0])

			if err != nil {
				return err
			}

			pop := tree.PopMin[[]byte, []byte]

			if highest {
				pop = tree.PopMax[[]byte, []byte]
			}

			key, value, ok, err := pop(t)

			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("tree %s is empty", args[0])
			}

			keyFormat, valueFormat, err := s.formats()

			if err != nil {
				return err
			}

			return s.printEntry(cmd.OutOrStdout(), keyFormat, valueFormat, rawEntry{Key: key, Value: value})
		}),
	}
}

func (s *session) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [tree]",
		Short: "Removes every entry from a tree",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			t, err := s.db.OpenRelaxedTree(args[0])

			if err != nil {
				return err
			}

			return t.Clear()
		}),
	}
}

func (s *session) dropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop [tree]",
		Short: "Deletes a tree",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			return s.db.DropTree(args[0])
		}),
	}
}

func (s *session) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints the size of every tree and the error counters",
		Long: `Prints the number of entries of every tree followed by the
counters of this invocation in Prometheus text format.`,
		Args: cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			names, err := s.db.TreeNames()

			if err != nil {
				return err
			}

			for _, name := range names {
				t, err := s.db.OpenRelaxedTree(name)

				if err != nil {
					return err
				}

				n, err := t.Len()

				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, n)
			}

			s.db.Metrics().WritePrometheus(cmd.OutOrStdout())

			return nil
		}),
	}
}

func (s *session) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [tree] [file]",
		Short: "Writes the raw contents of a tree to a file or stdout",
		Args:  cobra.RangeArgs(1, 2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			if len(args) == 2 {
				f, err := os.Create(args[1])

				if err != nil {
					return err
				}

				defer f.Close()

				w = f
			}

			n, err := s.db.ExportTree(args[0], w)

			if err != nil {
				return err
			}

			s.logger.Info("exported tree", zap.String("tree", args[0]), zap.Int64("bytes", n))

			return nil
		}),
	}
}

func (s *session) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [tree] [file]",
		Short: "Replaces the contents of a tree with an export",
		Args:  cobra.RangeArgs(1, 2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			r := cmd.InOrStdin()

			if len(args) == 2 {
				f, err := os.Open(args[1])

				if err != nil {
					return err
				}

				defer f.Close()

				r = f
			}

			n, err := s.db.ImportTree(args[0], r)

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), n)

			return nil
		}),
	}
}
