package opts

import (
	"github.com/walteh/stagerc/pkg/config"
	"github.com/walteh/stagerc/pkg/log"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Root         string
	Config       *config.Config
	Console      *log.Logger
	RegistryPath string // empty when the user config dir is unknown
}
