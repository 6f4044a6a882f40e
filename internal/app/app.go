package app

import (
	"go.uber.org/fx"

	"github.com/AFrenchWrench/ustat-orders/internal/cache"
	"github.com/AFrenchWrench/ustat-orders/internal/config"
	"github.com/AFrenchWrench/ustat-orders/internal/database"
	"github.com/AFrenchWrench/ustat-orders/internal/logger"
	"github.com/AFrenchWrench/ustat-orders/internal/messaging"
	"github.com/AFrenchWrench/ustat-orders/internal/observability"
	repositoryorder "github.com/AFrenchWrench/ustat-orders/internal/repository/order"
	repositorytransaction "github.com/AFrenchWrench/ustat-orders/internal/repository/transaction"
	repositoryvariant "github.com/AFrenchWrench/ustat-orders/internal/repository/variant"
	httpserver "github.com/AFrenchWrench/ustat-orders/internal/server/http"
	serviceorder "github.com/AFrenchWrench/ustat-orders/internal/service/order"
	servicetransaction "github.com/AFrenchWrench/ustat-orders/internal/service/transaction"
	"github.com/AFrenchWrench/ustat-orders/internal/storage"
	transporthttp "github.com/AFrenchWrench/ustat-orders/internal/transport/http"
	"github.com/AFrenchWrench/ustat-orders/internal/worker"
	workernotify "github.com/AFrenchWrench/ustat-orders/internal/worker/notify"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	storage.Module,
	repositoryorder.Module,
	repositoryvariant.Module,
	repositorytransaction.Module,
	serviceorder.Module,
	servicetransaction.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workernotify.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
