package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/qinguoyi/omnistore/internal/config"
	"github.com/qinguoyi/omnistore/internal/logging"
	"github.com/qinguoyi/omnistore/objstore"
)

// Exit codes.
const (
	exitFalse = 1
	exitUsage = 2
)

// app holds the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	log    zerolog.Logger
}

// overrides maps global flags to configuration keys.
var overrides = map[string]string{
	"backend":     "backend",
	"endpoint":    "endpoint",
	"bucket":      "bucket",
	"region":      "region",
	"root":        "local.root",
	"concurrency": "concurrency",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

func newApp(stdout, stderr io.Writer) *cli.App {
	a := &app{stdout: stdout, stderr: stderr, log: zerolog.Nop()}

	return &cli.App{
		Name:            "omnistore",
		Usage:           "Directory operations over object storage buckets",
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		// Exit codes are mapped by run, never by os.Exit inside the library.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"OMNISTORE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before reading the environment",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: fmt.Sprintf("storage backend %v", config.Backends),
			},
			&cli.StringFlag{Name: "endpoint", Usage: "service endpoint"},
			&cli.StringFlag{Name: "bucket", Aliases: []string{"b"}, Usage: "bucket name"},
			&cli.StringFlag{Name: "region", Usage: "bucket region"},
			&cli.StringFlag{Name: "root", Usage: "directory acting as the bucket for the local backend"},
			&cli.IntFlag{Name: "concurrency", Usage: "transfers run at once within a directory operation"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "console or json"},
		},
		Before: a.before,
		Commands: []*cli.Command{
			{
				Name:      "mkdir",
				Usage:     "Create a directory marker",
				ArgsUsage: "DIR",
				Action:    a.mkdir,
			},
			{
				Name:      "rmdir",
				Usage:     "Delete every object under a directory",
				ArgsUsage: "DIR",
				Action:    a.rmdir,
			},
			{
				Name:      "put",
				Usage:     "Upload a local file",
				ArgsUsage: "SRC DEST",
				Action:    a.put,
			},
			{
				Name:      "put-dir",
				Usage:     "Upload a local directory tree",
				ArgsUsage: "SRC DEST",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "exclude",
						Aliases: []string{"x"},
						Usage:   "skip local paths matching `PATTERN` (repeatable)",
					},
				},
				Action: a.putDir,
			},
			{
				Name:      "get",
				Usage:     "Download an object to a local file",
				ArgsUsage: "SRC DEST",
				Action:    a.get,
			},
			{
				Name:      "get-dir",
				Usage:     "Download every object under a directory",
				ArgsUsage: "SRC DEST",
				Action:    a.getDir,
			},
			{
				Name:      "rm",
				Usage:     "Delete an object",
				ArgsUsage: "KEY",
				Action:    a.rm,
			},
			{
				Name:      "exists",
				Usage:     "Report whether an object exists; exits 1 when it does not",
				ArgsUsage: "KEY",
				Action:    a.exists,
			},
			{
				Name:      "ls",
				Usage:     "List objects and directories under a prefix",
				ArgsUsage: "[PREFIX]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "list all keys below the prefix"},
				},
				Action: a.ls,
			},
		},
	}
}

func (a *app) before(c *cli.Context) error {
	values := make(map[string]any)
	for flag, key := range overrides {
		if c.IsSet(flag) {
			values[key] = c.Value(flag)
		}
	}

	cfg, err := config.Load(config.LoadOptions{
		File:      c.String("config"),
		EnvFile:   c.String("env-file"),
		Overrides: values,
	})
	if err != nil {
		return err
	}

	logger, err := logging.New(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid log level %q: %v", cfg.Log.Level, err), exitUsage)
	}
	a.cfg = cfg
	a.log = logger
	return nil
}

// open connects to the configured bucket. The caller closes the store.
func (a *app) open(c *cli.Context, opts ...objstore.Option) (*objstore.Store, error) {
	opts = append([]objstore.Option{objstore.WithLogger(logging.NewSlog(a.log))}, opts...)
	store, err := a.cfg.Open(c.Context, opts...)
	if err != nil {
		return nil, err
	}
	a.log.Debug().
		Str("backend", store.Backend()).
		Str("bucket", store.Bucket()).
		Msg("connected")
	return store, nil
}

// withStore opens the configured store, runs fn and closes the store.
func (a *app) withStore(c *cli.Context, fn func(*objstore.Store) error, opts ...objstore.Option) (err error) {
	store, err := a.open(c, opts...)
	if err != nil {
		return err
	}
	defer func() { err = a.closeStore(store, err) }()
	return fn(store)
}

// closeStore closes store and returns err, or the close error if err is nil.
// A close error that would mask err is logged instead.
func (a *app) closeStore(store io.Closer, err error) error {
	cerr := store.Close()
	if cerr == nil {
		return err
	}
	if err != nil {
		a.log.Warn().Err(cerr).Msg("closing store")
		return err
	}
	return fmt.Errorf("closing store: %w", cerr)
}

// args returns exactly n positional arguments or a usage error.
func args(c *cli.Context, n int) ([]string, error) {
	if c.NArg() != n {
		return nil, cli.Exit(
			fmt.Sprintf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage),
			exitUsage,
		)
	}
	return c.Args().Slice(), nil
}
