package member

import (
	"github.com/duniafantasy/fantasybox/internal/member/repository"
	"github.com/duniafantasy/fantasybox/internal/member/service"
	"go.uber.org/fx"
)

var Module = fx.Module("member.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
