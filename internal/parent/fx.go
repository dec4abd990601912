package parent

import (
	"github.com/smallbiznis/prooflink/internal/parent/repository"
	"github.com/smallbiznis/prooflink/internal/parent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("parent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
