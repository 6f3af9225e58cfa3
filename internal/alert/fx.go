package alert

import (
	"github.com/pulseboard/pulseboard/internal/alert/repository"
	"github.com/pulseboard/pulseboard/internal/alert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("alert.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
