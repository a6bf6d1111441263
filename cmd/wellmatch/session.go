package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/raaihank/wellmatch/internal/app"
	"github.com/raaihank/wellmatch/internal/cache"
)

// openSession builds the query session, attaching the Redis match cache
// when it is enabled and reachable. The returned func releases the cache.
func openSession(ctx context.Context, rt *cliState) (*app.Session, func(), error) {
	var opts []app.Option
	release := func() {}

	if rt.cfg.Cache.Enabled {
		mc, err := cache.NewMatchCache(app.CacheConfig(rt.cfg), rt.log.WithComponent("cache").Logger)
		if err != nil {
			rt.log.Warn("Match cache unavailable, continuing without it", zap.Error(err))
		} else {
			opts = append(opts, app.WithCache(mc))
			release = func() { _ = mc.Close() }
		}
	}

	session, err := app.Build(ctx, rt.cfg, rt.log, opts...)
	if err != nil {
		release()
		return nil, func() {}, err
	}
	return session, release, nil
}
