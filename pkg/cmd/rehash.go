package cmd

import (
	"context"

	"github.com/pseudomuto/pgkeeper/pkg/migrate"
	"github.com/urfave/cli/v3"
)

// rehash creates a CLI command for regenerating migrate.sum.
//
// upgrade, downgrade and stamp refuse to run when the scripts no longer match
// an existing sum file. After an intentional edit to a revision script, rehash
// records the new contents.
//
// Example usage:
//
//	pgkeeper db migrate rehash
func rehash(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:  "rehash",
		Usage: "Regenerate the sum file for all revision scripts",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := engineConfig(p.Config, cmd)
			if err != nil {
				return err
			}

			return migrate.Rehash(cfg)
		},
	}
}
