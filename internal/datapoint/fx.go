package datapoint

import (
	"github.com/pulseboard/pulseboard/internal/datapoint/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("datapoint",
	fx.Provide(repository.Provide),
)
