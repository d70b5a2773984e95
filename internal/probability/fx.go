package probability

import (
	"github.com/duniafantasy/fantasybox/internal/probability/repository"
	"github.com/duniafantasy/fantasybox/internal/probability/service"
	"go.uber.org/fx"
)

var Module = fx.Module("probability.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
