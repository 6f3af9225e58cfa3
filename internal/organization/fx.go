package organization

import (
	"github.com/pulseboard/pulseboard/internal/organization/repository"
	"github.com/pulseboard/pulseboard/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
