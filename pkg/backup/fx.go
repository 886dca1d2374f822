package backup

import (
	"os"

	"go.uber.org/fx"
)

var Module = fx.Module("backup", fx.Provide(
	func() Runner {
		return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
	},
	New,
))
