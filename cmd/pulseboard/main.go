package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/pulseboard/pulseboard/internal/alert"
	"github.com/pulseboard/pulseboard/internal/auth"
	"github.com/pulseboard/pulseboard/internal/cache"
	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/connect"
	"github.com/pulseboard/pulseboard/internal/datapoint"
	"github.com/pulseboard/pulseboard/internal/integration"
	"github.com/pulseboard/pulseboard/internal/migration"
	"github.com/pulseboard/pulseboard/internal/observability"
	"github.com/pulseboard/pulseboard/internal/organization"
	"github.com/pulseboard/pulseboard/internal/scheduler"
	"github.com/pulseboard/pulseboard/internal/server"
	syncmodule "github.com/pulseboard/pulseboard/internal/sync"
	"github.com/pulseboard/pulseboard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		cache.Module,

		// Functional domains
		auth.Module,
		organization.Module,
		integration.Module,
		connect.Module,
		datapoint.Module,
		alert.Module,
		syncmodule.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
