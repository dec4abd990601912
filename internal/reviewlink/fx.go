package reviewlink

import (
	"github.com/smallbiznis/prooflink/internal/reviewlink/repository"
	"github.com/smallbiznis/prooflink/internal/reviewlink/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reviewlink.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
