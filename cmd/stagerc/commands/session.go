package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/cmd/stagerc/opts"
	"github.com/walteh/stagerc/pkg/session"
)

// openSession opens the project named by the root flag
func openSession(ctx context.Context, o *opts.RootOpts) (*session.Session, error) {
	return session.Open(ctx, session.Options{
		Root:    o.Root,
		Config:  o.Config,
		Console: o.Console,
	})
}

// remember records the project in the registry; failures are only logged
func remember(ctx context.Context, o *opts.RootOpts, s *session.Session) {
	if o.RegistryPath == "" {
		return
	}
	logger := zerolog.Ctx(ctx)

	reg, err := session.LoadRegistry(ctx, o.RegistryPath)
	if err != nil {
		logger.Warn().Err(err).Msg("loading project registry")
		return
	}
	reg.Touch(s.Root, s.StagingDir, time.Now())
	if err := reg.Save(ctx); err != nil {
		logger.Warn().Err(err).Msg("saving project registry")
	}
}
