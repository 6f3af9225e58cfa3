package integration

import (
	"github.com/pulseboard/pulseboard/internal/integration/repository"
	"github.com/pulseboard/pulseboard/internal/integration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("integration.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
