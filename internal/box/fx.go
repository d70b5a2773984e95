package box

import (
	"github.com/duniafantasy/fantasybox/internal/box/repository"
	"github.com/duniafantasy/fantasybox/internal/box/service"
	"go.uber.org/fx"
)

var Module = fx.Module("box.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
