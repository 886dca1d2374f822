package cmd

import (
	"github.com/pseudomuto/pgkeeper/pkg/database"
	"go.uber.org/fx"
)

var Module = fx.Module("cli",
	fx.Provide(
		func(m *database.Manager) SchemaManager { return m },

		fx.Annotate(db, fx.ResultTags(`group:"commands"`)),

		fx.Annotate(createAll, fx.ResultTags(`group:"db"`)),
		fx.Annotate(dropAll, fx.ResultTags(`group:"db"`)),
		fx.Annotate(resetAll, fx.ResultTags(`group:"db"`)),
		fx.Annotate(pg, fx.ResultTags(`group:"db"`)),
		fx.Annotate(migrateCmd, fx.ResultTags(`group:"db"`)),

		fx.Annotate(initCmd, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(revision, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(merge, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(upgrade, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(downgrade, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(stamp, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(show, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(history, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(heads, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(branches, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(current, fx.ResultTags(`group:"migrate"`)),
		fx.Annotate(rehash, fx.ResultTags(`group:"migrate"`)),
	),
	fx.Invoke(Run),
)
