package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/bunchhieng/gdaes/internal/app"
	cmds "github.com/bunchhieng/gdaes/internal/cli"
	"github.com/bunchhieng/gdaes/internal/config"
	"github.com/bunchhieng/gdaes/internal/httpserver"
	"github.com/bunchhieng/gdaes/internal/logger"
	"github.com/bunchhieng/gdaes/internal/tui"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "gdaes",
		Usage:   "keep named lists of links",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "config file path",
				Value:   config.DefaultPath(),
				EnvVars: []string{"GDAES_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "db-path",
				Usage: "database file path (default: platform config directory)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "lists",
				Usage:  "Show every list with its link count",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error { return cm.Lists() }),
			},
			{
				Name:      "show",
				Usage:     "Show the links of a list",
				ArgsUsage: "<list>",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					name, err := arg(c, 0, "gdaes show <list>")
					if err != nil {
						return err
					}
					return cm.Show(name)
				}),
			},
			{
				Name:      "create",
				Usage:     "Create an empty list",
				ArgsUsage: "<list>",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					name, err := arg(c, 0, "gdaes create <list>")
					if err != nil {
						return err
					}
					return cm.Create(c.Context, name)
				}),
			},
			{
				Name:      "rename",
				Usage:     "Rename a list",
				ArgsUsage: "<list> <new-name>",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					if c.NArg() < 2 {
						return fmt.Errorf("usage: gdaes rename <list> <new-name>")
					}
					return cm.Rename(c.Context, c.Args().Get(0), c.Args().Get(1))
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete one or more lists and their links",
				ArgsUsage: "<list> [list...]",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					if c.NArg() == 0 {
						return fmt.Errorf("usage: gdaes delete <list> [list...]")
					}
					return cm.Delete(c.Context, c.Args().Slice()...)
				}),
			},
			{
				Name:      "add",
				Usage:     "Add a link to the end of a list",
				ArgsUsage: "<list> <url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "title for the link"},
				},
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					if c.NArg() < 2 {
						return fmt.Errorf("usage: gdaes add <list> <url> [--title \"...\"]")
					}
					return cm.Add(c.Context, c.Args().Get(0), c.Args().Get(1), c.String("title"))
				}),
			},
			{
				Name:      "move",
				Usage:     "Move a link to another list or position",
				ArgsUsage: "<list> <n> <target>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "at", Usage: "1-based position in the target (default: end)"},
				},
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					if c.NArg() < 3 {
						return fmt.Errorf("usage: gdaes move <list> <n> <target> [--at n]")
					}
					n, err := cmds.ParseNumber(c.Args().Get(1))
					if err != nil {
						return err
					}
					if c.Int("at") < 0 {
						return fmt.Errorf("invalid position: %d", c.Int("at"))
					}
					return cm.Move(c.Context, c.Args().Get(0), n, c.Args().Get(2), c.Int("at"))
				}),
			},
			{
				Name:      "reorder",
				Usage:     "Move a list to the position of another list",
				ArgsUsage: "<list> <target>",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					if c.NArg() < 2 {
						return fmt.Errorf("usage: gdaes reorder <list> <target>")
					}
					return cm.Reorder(c.Context, c.Args().Get(0), c.Args().Get(1))
				}),
			},
			{
				Name:      "rm",
				Usage:     "Remove links from a list by number",
				ArgsUsage: "<list> <n> [n...]",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					if c.NArg() < 2 {
						return fmt.Errorf("usage: gdaes rm <list> <n> [n...]")
					}
					numbers := make([]int, 0, c.NArg()-1)
					for _, a := range c.Args().Slice()[1:] {
						n, err := cmds.ParseNumber(a)
						if err != nil {
							return err
						}
						numbers = append(numbers, n)
					}
					return cm.Remove(c.Context, c.Args().Get(0), numbers...)
				}),
			},
			{
				Name:      "open",
				Usage:     "Open a link, or every valid link of a list, in the browser",
				ArgsUsage: "<list> [n]",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					name, err := arg(c, 0, "gdaes open <list> [n]")
					if err != nil {
						return err
					}
					n := 0
					if c.NArg() > 1 {
						if n, err = cmds.ParseNumber(c.Args().Get(1)); err != nil {
							return err
						}
					}
					return cm.Open(name, n)
				}),
			},
			{
				Name:      "search",
				Usage:     "Search link titles and URLs",
				ArgsUsage: "<query>",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					q, err := arg(c, 0, "gdaes search \"<query>\"")
					if err != nil {
						return err
					}
					return cm.Search(q)
				}),
			},
			{
				Name:  "export",
				Usage: "Export every list as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to a file instead of stdout; a directory gets a dated file name"},
				},
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					return cm.Export(os.Stdout, c.String("output"))
				}),
			},
			{
				Name:      "import",
				Usage:     "Replace every list with the contents of an export file",
				ArgsUsage: "<file.json>",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					file, err := arg(c, 0, "gdaes import <file.json>")
					if err != nil {
						return err
					}
					return cm.Import(c.Context, file)
				}),
			},
			{
				Name:   "backups",
				Usage:  "List automatic backups",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error { return cm.Backups(c.Context) }),
			},
			{
				Name:      "restore",
				Usage:     "Restore a backup",
				ArgsUsage: "<key>",
				Action: withCommands(func(c *cli.Context, cm *cmds.Commands) error {
					raw, err := arg(c, 0, "gdaes restore <key>")
					if err != nil {
						return err
					}
					key, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						return fmt.Errorf("invalid backup key: %s", raw)
					}
					return cm.Restore(c.Context, key)
				}),
			},
			{
				Name:  "status",
				Usage: "Show where data was loaded from",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					return cmds.NewCommands(a.Store, os.Stdout).Status(a.Config.DBPath, describeMirror(a.Config.Mirror))
				}),
			},
			{
				Name:  "tui",
				Usage: "Browse and rearrange lists interactively",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					return tui.Run(c.Context, a.Store)
				}),
			},
			{
				Name:  "serve",
				Usage: "Serve the JSON API used by the extension",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Usage: "listen address (default from config)"},
				},
				Action: withApp(func(c *cli.Context, a *app.App) error {
					httpCfg := a.Config.HTTP
					if l := c.String("listen"); l != "" {
						httpCfg.Listen = l
					}
					return httpserver.New(httpCfg, a.Store, a.Log, version).Run(c.Context)
				}),
			},
			{
				Name:  "version",
				Usage: "Show version",
				Action: func(c *cli.Context) error {
					cmds.NewCommands(nil, os.Stdout).Version(version)
					return nil
				},
			},
		},
	}
}

// withApp loads configuration, builds the application and closes it once
// action returns.
func withApp(action func(c *cli.Context, a *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if p := c.String("db-path"); p != "" {
			cfg.DBPath = p
		}
		if l := c.String("log-level"); l != "" {
			cfg.Log.Level = l
		}

		log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		a, err := app.New(c.Context, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn("close failed", logger.Error(err))
			}
		}()

		return action(c, a)
	}
}

func withCommands(action func(c *cli.Context, cm *cmds.Commands) error) cli.ActionFunc {
	return withApp(func(c *cli.Context, a *app.App) error {
		return action(c, cmds.NewCommands(a.Store, os.Stdout))
	})
}

func arg(c *cli.Context, i int, usage string) (string, error) {
	if c.NArg() <= i {
		return "", fmt.Errorf("usage: %s", usage)
	}
	return c.Args().Get(i), nil
}

func describeMirror(m config.MirrorConfig) string {
	if m.Backend == config.MirrorRedis {
		return fmt.Sprintf("redis %s", m.Redis.Addr)
	}
	return fmt.Sprintf("file %s", m.Path)
}
