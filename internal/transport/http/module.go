package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/AFrenchWrench/ustat-orders/internal/transport/http/order"
	transactiontransport "github.com/AFrenchWrench/ustat-orders/internal/transport/http/transaction"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	transactiontransport.Module,
)
