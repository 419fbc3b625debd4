package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/qinguoyi/omnistore/objstore"
)

func (a *app) mkdir(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		return store.CreateDir(c.Context, argv[0])
	})
}

func (a *app) rmdir(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		return store.DeleteDir(c.Context, argv[0])
	})
}

func (a *app) put(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		return store.Upload(c.Context, argv[0], argv[1])
	})
}

func (a *app) putDir(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		return store.UploadDir(c.Context, argv[0], argv[1])
	}, objstore.WithExclude(c.StringSlice("exclude")...))
}

func (a *app) get(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		return store.Download(c.Context, argv[0], argv[1])
	})
}

func (a *app) getDir(c *cli.Context) error {
	argv, err := args(c, 2)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		return store.DownloadDir(c.Context, argv[0], argv[1])
	})
}

func (a *app) rm(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		return store.Delete(c.Context, argv[0])
	})
}

func (a *app) exists(c *cli.Context) error {
	argv, err := args(c, 1)
	if err != nil {
		return err
	}
	return a.withStore(c, func(store *objstore.Store) error {
		ok, err := store.Exists(c.Context, argv[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, ok)
		if !ok {
			return cli.Exit("", exitFalse)
		}
		return nil
	})
}

func (a *app) ls(c *cli.Context) error {
	if c.NArg() > 1 {
		return cli.Exit("usage: omnistore ls [--recursive] [PREFIX]", exitUsage)
	}
	prefix := c.Args().First()
	if prefix != "" {
		prefix = objstore.DirKey(prefix)
	}

	return a.withStore(c, func(store *objstore.Store) error {
		objects, prefixes, err := store.List(c.Context, prefix, c.Bool("recursive"))
		if err != nil {
			return err
		}
		for _, p := range prefixes {
			fmt.Fprintf(a.stdout, "%12s  %s\n", "DIR", p)
		}
		for _, o := range objects {
			fmt.Fprintf(a.stdout, "%12d  %s\n", o.Size, o.Key)
		}
		return nil
	})
}
