package config

import "go.uber.org/fx"

// Module provides the ledger policy. Config itself is loaded before the
// container starts and supplied with fx.Supply.
var Module = fx.Module("config",
	fx.Provide(NewLedgerPolicyHolder),
)
