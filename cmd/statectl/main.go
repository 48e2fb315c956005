// Command statectl is the operator CLI over a filestore-backed driver,
// restructured from cmd/rubin-node's single-binary run loop into
// urfave/cli/v2 subcommands (DioneProtocol-coreth's dependency stack
// carries urfave/cli/v2; cmd/rubin-node itself only used the stdlib flag
// package, which had no subcommand concept to generalize to eight
// distinct operations).
//
// soft-apply/hard-apply/rollback/commit are collapsed into one "apply"
// subcommand: each statectl invocation constructs a fresh Cache, and
// pending_deltas/pending_writes are explicitly scoped to one Cache instance
// (spec.md §5's concurrency model) — they cannot survive a process exit
// without a persistence format this core does not define. "apply" lets one
// invocation soft-apply a sequence of tagged delta sets and then either
// hard-apply through a tag or roll everything back, so the full lifecycle
// is exercisable from the shell without inventing a cross-process state
// format.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"lamden.dev/statecore/backend/filestore"
	"lamden.dev/statecore/cache"
	"lamden.dev/statecore/config"
	"lamden.dev/statecore/costsink"
	"lamden.dev/statecore/driver"
	"lamden.dev/statecore/keycodec"
	"lamden.dev/statecore/value"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, nil)))

	app := &cli.App{
		Name:      "statectl",
		Usage:     "inspect and mutate a statecore-backed contract state store",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Usage: "file backend root directory (defaults to config.DefaultRootPath)"},
			&cli.StringFlag{Name: "config", Usage: "path to a config file layered over defaults"},
		},
		Commands: []*cli.Command{
			getCommand(),
			setCommand(),
			deleteCommand(),
			itemsCommand(),
			applyCommand(),
			installContractCommand(),
			deleteContractCommand(),
			flushCommand(),
		},
	}
	if err := app.Run(args); err != nil {
		slog.Error("statectl failed", "err", err)
		return 1
	}
	return 0
}

func openDriver(c *cli.Context) (*driver.Driver, *cache.Cache, func() error, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}
	if root := c.String("root"); root != "" {
		cfg.RootPath = root
	}

	codec := keycodec.New(cfg.MaxKeySize, cfg.MaxHashDimensions)
	fs, err := filestore.New(filestore.Config{
		Root:           cfg.RootPath,
		Codec:          codec,
		LockTimeout:    time.Duration(cfg.LockTimeoutSeconds) * time.Second,
		OpenFileBudget: cfg.OpenFileBudget,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open backend: %w", err)
	}

	sink := costsink.NewRecordingSink(costsink.Rates{
		ReadPerByte:  cfg.ReadCostPerByte,
		WritePerByte: cfg.WriteCostPerByte,
	})
	c5 := cache.New(fs, sink)
	d := driver.New(c5, fs, codec)
	return d, c5, fs.Close, nil
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the visible value for a contract variable",
		ArgsUsage: "<contract> <variable> [subkey...]",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("get requires at least <contract> <variable>", 2)
			}
			d, _, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()

			contract := c.Args().Get(0)
			variable := c.Args().Get(1)
			subkeys := c.Args().Slice()[2:]

			v, err := d.GetVar(context.Background(), contract, variable, subkeys, true)
			if err != nil {
				return err
			}
			encoded, err := value.Encode(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, encoded)
			return nil
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "set a contract variable and durably commit it",
		ArgsUsage: "<contract> <variable> <value> [subkey...]",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 3 {
				return cli.Exit("set requires <contract> <variable> <value>", 2)
			}
			d, cacheRef, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()

			contract := c.Args().Get(0)
			variable := c.Args().Get(1)
			literal := c.Args().Get(2)
			subkeys := c.Args().Slice()[3:]

			ctx := context.Background()
			if err := d.SetVar(ctx, contract, variable, subkeys, value.Decode(literal), true); err != nil {
				return err
			}
			return cacheRef.Commit(ctx)
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "delete a contract variable and durably commit the deletion",
		ArgsUsage: "<contract> <variable> [subkey...]",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("delete requires at least <contract> <variable>", 2)
			}
			d, cacheRef, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()

			contract := c.Args().Get(0)
			variable := c.Args().Get(1)
			subkeys := c.Args().Slice()[2:]

			ctx := context.Background()
			if err := d.SetVar(ctx, contract, variable, subkeys, value.Null(), true); err != nil {
				return err
			}
			return cacheRef.Commit(ctx)
		},
	}
}

func itemsCommand() *cli.Command {
	return &cli.Command{
		Name:      "items",
		Usage:     "list every flat key and value under a prefix",
		ArgsUsage: "<prefix>",
		Action: func(c *cli.Context) error {
			prefix := c.Args().Get(0)
			d, _, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()

			items, err := d.Items(context.Background(), prefix)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(items))
			for k := range items {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				encoded, err := value.Encode(items[k])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s=%s\n", k, encoded)
			}
			return nil
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "soft-apply one or more tagged delta sets, then hard-apply or roll back",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "delta", Usage: "tag:key=value[,key=value...], repeatable in any order"},
			&cli.StringFlag{Name: "hard-apply-through", Usage: "hard-apply every delta set with tag <= this value"},
			&cli.BoolFlag{Name: "rollback", Usage: "roll back every soft-applied delta set instead of hard-applying"},
		},
		Action: func(c *cli.Context) error {
			_, cacheRef, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()
			ctx := context.Background()

			for _, spec := range c.StringSlice("delta") {
				tag, changes, err := parseDeltaSpec(spec)
				if err != nil {
					return err
				}
				if err := cacheRef.SoftApply(ctx, tag, changes); err != nil {
					return err
				}
			}

			switch {
			case c.Bool("rollback"):
				cacheRef.Rollback()
			case c.String("hard-apply-through") != "":
				if err := cacheRef.HardApply(ctx, c.String("hard-apply-through")); err != nil {
					return err
				}
			}
			fmt.Fprintln(c.App.Writer, "pending_deltas:", strings.Join(cacheRef.PendingDeltaTags(), ","))
			return nil
		},
	}
}

func parseDeltaSpec(spec string) (string, map[string]value.Value, error) {
	tag, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return "", nil, fmt.Errorf("delta %q must be tag:key=value[,key=value...]", spec)
	}
	changes := make(map[string]value.Value)
	for _, pair := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return "", nil, fmt.Errorf("delta entry %q must be key=value", pair)
		}
		changes[k] = value.Decode(v)
	}
	return tag, changes, nil
}

func installContractCommand() *cli.Command {
	return &cli.Command{
		Name:      "install-contract",
		Usage:     "install a contract's reserved metadata slots",
		ArgsUsage: "<name> <code-file> <owner> <developer>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 4 {
				return cli.Exit("install-contract requires <name> <code-file> <owner> <developer>", 2)
			}
			d, cacheRef, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()

			name := c.Args().Get(0)
			codePath := c.Args().Get(1)
			owner := c.Args().Get(2)
			developer := c.Args().Get(3)

			code, err := os.ReadFile(codePath)
			if err != nil {
				return fmt.Errorf("read code file: %w", err)
			}

			ctx := context.Background()
			if err := d.SetContract(ctx, name, string(code), nil, owner, value.Timestamp{}, developer); err != nil {
				return err
			}
			return cacheRef.Commit(ctx)
		},
	}
}

func deleteContractCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-contract",
		Usage:     "remove every entry belonging to a contract",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 1 {
				return cli.Exit("delete-contract requires <name>", 2)
			}
			d, _, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()
			return d.DeleteContract(context.Background(), c.Args().Get(0))
		},
	}
}

func flushCommand() *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "remove every entry from the backend and clear cache state",
		Action: func(c *cli.Context) error {
			d, _, closeFn, err := openDriver(c)
			if err != nil {
				return err
			}
			defer closeFn()
			return d.Flush(context.Background())
		},
	}
}
