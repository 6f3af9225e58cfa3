package auth

import (
	"github.com/pulseboard/pulseboard/internal/auth/repository"
	"github.com/pulseboard/pulseboard/internal/auth/service"
	"github.com/pulseboard/pulseboard/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideSessions),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
