package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/clock"
	"github.com/duniafantasy/fantasybox/internal/config"
	"github.com/duniafantasy/fantasybox/internal/migration"
	"github.com/duniafantasy/fantasybox/internal/observability"
	"github.com/duniafantasy/fantasybox/internal/scheduler"
	"github.com/duniafantasy/fantasybox/internal/server"
	"github.com/duniafantasy/fantasybox/pkg/db"
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

		// Schema and seed data before anything serves traffic.
		migration.Module,

		// HTTP surface plus the domain modules it pulls in.
		server.Module,

		// Background expiry reaper.
		scheduler.Module,
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
