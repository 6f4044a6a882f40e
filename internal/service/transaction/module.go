package transaction

import "go.uber.org/fx"

// Module provides the transaction service to Fx.
var Module = fx.Provide(NewService)
