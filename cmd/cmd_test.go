package cmd_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/sertree/cmd"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t    *testing.T
	path string
}

func newCLI(t *testing.T) *cli {
	return &cli{t: t, path: filepath.Join(t.TempDir(), "sertree.db")}
}

func (c *cli) run(args ...string) (string, error) {
	var out bytes.Buffer

	root := cmd.NewRootCommand()
	root.SetArgs(append([]string{"--engine", "bbolt", "--path", c.path}, args...))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()

	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	out, err := c.run(args...)

	if err != nil {
		c.t.Fatalf("sertree %s: expected err to be nil, got %#v", strings.Join(args, " "), err)
	}

	return out
}

func TestCLI(t *testing.T) {
	c := newCLI(t)

	for _, key := range []string{"3", "-1", "10", "2"} {
		c.mustRun("--key-type", "int64", "put", "numbers", key, "v"+key)
	}

	testCases := map[string]struct {
		args   []string
		output string
	}{
		"get": {
			args:   []string{"--key-type", "int64", "get", "numbers", "10"},
			output: "v10\n",
		},
		"len": {
			args:   []string{"len", "numbers"},
			output: "4\n",
		},
		"dump": {
			args:   []string{"--key-type", "int64", "dump", "numbers"},
			output: "-1\tv-1\n2\tv2\n3\tv3\n10\tv10\n",
		},
		"dump-range": {
			args:   []string{"--key-type", "int64", "dump", "numbers", "--from", "2", "--to", "10"},
			output: "2\tv2\n3\tv3\n",
		},
		"dump-reverse-limit": {
			args:   []string{"--key-type", "int64", "dump", "numbers", "--reverse", "--limit", "2"},
			output: "10\tv10\n3\tv3\n",
		},
		"dump-bytes": {
			args:   []string{"--key-type", "bytes", "dump", "numbers", "--limit", "1"},
			output: "7fffffffffffffff\tv-1\n",
		},
		"trees": {
			args:   []string{"trees"},
			output: "numbers\n",
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			out := c.mustRun(testCase.args...)

			if diff := cmp.Diff(testCase.output, out); diff != "" {
				t.Fatalf("%s", diff)
			}
		})
	}
}

func TestCLIWrites(t *testing.T) {
	c := newCLI(t)

	require.Equal(t, "", c.mustRun("put", "t", "a", "1"))
	require.Equal(t, "1\n", c.mustRun("put", "t", "a", "2"))
	require.Equal(t, "2\n", c.mustRun("remove", "t", "a"))

	_, err := c.run("get", "t", "a")
	require.Error(t, err)

	c.mustRun("put", "t", "a", "1")
	c.mustRun("put", "t", "b", "2")
	require.Equal(t, "b\t2\n", c.mustRun("pop-max", "t"))
	require.Equal(t, "a\t1\n", c.mustRun("pop-min", "t"))

	_, err = c.run("pop-max", "t")
	require.Error(t, err)

	c.mustRun("put", "t", "a", "1")
	c.mustRun("clear", "t")
	require.Equal(t, "0\n", c.mustRun("len", "t"))

	c.mustRun("drop", "t")
	require.Equal(t, "", c.mustRun("trees"))
}

func TestCLITypes(t *testing.T) {
	c := newCLI(t)

	c.mustRun("--value-type", "json", "put", "docs", "a", `{"b":1,"a":[true]}`)
	require.Equal(t, `{"a":[true],"b":1}`+"\n", c.mustRun("--value-type", "json", "get", "docs", "a"))

	c.mustRun("--key-type", "time", "--value-type", "bool", "put", "events", "2024-01-02T03:04:05Z", "true")
	require.Equal(t, "2024-01-02T03:04:05Z\ttrue\n", c.mustRun("--key-type", "time", "--value-type", "bool", "dump", "events"))

	// a string is not a valid bool
	_, err := c.run("--value-type", "bool", "get", "docs", "a")
	require.Error(t, err)

	_, err = c.run("--key-type", "int64", "put", "docs", "nope", "x")
	require.Error(t, err)

	_, err = c.run("--key-type", "json", "dump", "docs", "--from", "1")
	require.Error(t, err)

	_, err = c.run("--key-type", "nope", "get", "docs", "a")
	require.Error(t, err)
}

func TestCLIExportImport(t *testing.T) {
	c := newCLI(t)
	file := filepath.Join(t.TempDir(), "export")

	c.mustRun("put", "source", "a", "1")
	c.mustRun("put", "source", "b", "")
	c.mustRun("export", "source", file)
	require.Equal(t, "2\n", c.mustRun("import", "target", file))
	require.Equal(t, "a\t1\nb\t\n", c.mustRun("dump", "target"))
}

func TestCLIStats(t *testing.T) {
	c := newCLI(t)

	c.mustRun("put", "a", "k", "v")

	out := c.mustRun("stats")
	require.Contains(t, out, "a\t1\n")
	require.Contains(t, out, "sertree_trees_opened_total 1")
}

func TestCLIUnknownEngine(t *testing.T) {
	root := cmd.NewRootCommand()
	root.SetArgs([]string{"--engine", "nope", "trees"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	require.Error(t, root.Execute())
}
