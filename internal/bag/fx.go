package bag

import (
	"github.com/smallbiznis/cemtrack/internal/bag/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bag.service",
	fx.Provide(service.NewService),
)
