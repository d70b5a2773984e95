package ledger

import (
	"github.com/duniafantasy/fantasybox/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.New),
)
