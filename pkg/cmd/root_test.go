package cmd

import (
	"context"
	"testing"

	"github.com/pseudomuto/pgkeeper/pkg/backup"
	"github.com/pseudomuto/pgkeeper/pkg/config"
	"github.com/pseudomuto/pgkeeper/pkg/database"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModule(t *testing.T) {
	err := fx.ValidateApp(
		fx.NopLogger,
		fx.Supply([]string{"pgkeeper", "--help"}, &Version{Version: "test"}),
		fx.Provide(func() context.Context { return context.Background() }),
		config.Module,
		backup.Module,
		database.Module,
		Module,
	)
	require.NoError(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	require.NoError(t, setupLogging("debug"))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	require.ErrorContains(t, setupLogging("chatty"), "invalid log level: chatty")
}
