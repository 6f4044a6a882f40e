package variant

import "go.uber.org/fx"

// Module provides the catalog variant repository to Fx.
var Module = fx.Provide(NewRepository)
