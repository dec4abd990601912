package reviewevents

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("reviewevents",
	fx.Provide(NewHub),
	fx.Provide(NewBroadcaster),
	fx.Invoke(func(lc fx.Lifecycle, b *Broadcaster) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				b.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				b.Stop()
				return nil
			},
		})
	}),
)
