package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/cemtrack/internal/bag"
	"github.com/smallbiznis/cemtrack/internal/clock"
	"github.com/smallbiznis/cemtrack/internal/config"
	"github.com/smallbiznis/cemtrack/internal/dashboard"
	"github.com/smallbiznis/cemtrack/internal/ledger"
	"github.com/smallbiznis/cemtrack/internal/lock"
	"github.com/smallbiznis/cemtrack/internal/observability"
	"github.com/smallbiznis/cemtrack/internal/providers"
	"github.com/smallbiznis/cemtrack/internal/server"
	"github.com/smallbiznis/cemtrack/internal/usage"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()

	app := fx.New(
		// Core Infrastructure
		fx.Supply(cfg),
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		ledger.Module(cfg),
		lock.Module,

		// Functional Domains
		bag.Module,
		usage.Module,
		dashboard.Module,
		providers.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
