package main

import (
	"context"
	"os"

	"github.com/pseudomuto/pgkeeper/pkg/backup"
	"github.com/pseudomuto/pgkeeper/pkg/cmd"
	"github.com/pseudomuto/pgkeeper/pkg/config"
	"github.com/pseudomuto/pgkeeper/pkg/database"
	"go.uber.org/fx"
)

// NB: These are set by GoReleaser during a build.
var (
	version string
	commit  string
	date    string
)

func main() {
	app := fx.New(
		fx.NopLogger,
		fx.Supply(
			os.Args,
			&cmd.Version{Version: version, Commit: commit, Timestamp: date},
		),
		fx.Provide(func() context.Context { return context.Background() }),
		config.Module,
		backup.Module,
		database.Module,
		cmd.Module,
	)

	app.Run()
}
