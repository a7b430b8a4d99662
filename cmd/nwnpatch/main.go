// Command nwnpatch applies and joins content patch packages and inspects
// game resource stores.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/meigma/nwnpatch/internal/logging"
	"github.com/meigma/nwnpatch/patcher"
)

// CLI defines the command-line interface.
type CLI struct {
	LogLevel  string `name:"log-level" default:"info" env:"NWNPATCH_LOG_LEVEL" enum:"debug,info,warn,error" help:"Minimum log level."`
	LogFormat string `name:"log-format" default:"text" env:"NWNPATCH_LOG_FORMAT" enum:"text,json" help:"Log output format."`

	Apply   ApplyCmd   `cmd:"" help:"Merge a patch package into base tables"`
	Preview PreviewCmd `cmd:"" help:"Show the table changes a patch would make"`
	Join    JoinCmd    `cmd:"" help:"Join patch packages, oldest first, into one"`
	Pack    PackCmd    `cmd:"" help:"Pack a directory into a hak, mod, erf or zip archive"`
	BIF     BIFGroup   `cmd:"" name:"bif" help:"Indexed archive operations"`
	Repo    RepoGroup  `cmd:"" help:"Resource store operations"`
}

// BIFGroup contains indexed archive operations.
type BIFGroup struct {
	Ls      BIFLsCmd      `cmd:"" help:"List the entries of a BIF archive"`
	Extract BIFExtractCmd `cmd:"" help:"Extract every entry of a BIF archive"`
}

// RepoGroup contains resource store operations.
type RepoGroup struct {
	Ls  RepoLsCmd  `cmd:"" help:"List the resources of a directory, key file or container"`
	Cat RepoCatCmd `cmd:"" help:"Write one resource to stdout"`
}

// app carries what every command needs.
type app struct {
	ctx    context.Context
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
}

func (a *app) patcher(opts ...patcher.Option) *patcher.Patcher {
	opts = append([]patcher.Option{
		patcher.WithLogger(a.logger),
		patcher.WithProgress(func(e patcher.ProgressEvent) {
			a.logger.Debug("progress", "stage", e.Stage.String(), "path", e.Path, "done", e.FilesDone, "total", e.FilesTotal)
		}),
	}, opts...)
	return patcher.New(opts...)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("nwnpatch"),
		kong.Description("Neverwinter Nights content patch tool"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	logger, err := logging.Parse(stderr, cli.LogLevel, cli.LogFormat)
	if err != nil {
		return err
	}
	return kctx.Run(&app{ctx: ctx, logger: logger, out: stdout, errOut: stderr})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "nwnpatch:", err)
		os.Exit(1)
	}
}
