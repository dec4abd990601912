package feedback

import (
	"github.com/smallbiznis/prooflink/internal/feedback/repository"
	"github.com/smallbiznis/prooflink/internal/feedback/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feedback.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
