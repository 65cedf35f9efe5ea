package fx

import (
	"github.com/voxpost/voxpost/internal/repositories/draft"
	"github.com/voxpost/voxpost/internal/repositories/source"
	"go.uber.org/fx"
)

var Module = fx.Options(
	draft.Module,
	source.Module,
)
