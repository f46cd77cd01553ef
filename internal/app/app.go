package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/invoicer/internal/cache"
	"github.com/Additional-Code/invoicer/internal/config"
	"github.com/Additional-Code/invoicer/internal/database"
	"github.com/Additional-Code/invoicer/internal/logger"
	"github.com/Additional-Code/invoicer/internal/messaging"
	"github.com/Additional-Code/invoicer/internal/observability"
	repositoryinvoice "github.com/Additional-Code/invoicer/internal/repository/invoice"
	"github.com/Additional-Code/invoicer/internal/revalidate"
	grpcserver "github.com/Additional-Code/invoicer/internal/server/grpc"
	httpserver "github.com/Additional-Code/invoicer/internal/server/http"
	serviceinvoice "github.com/Additional-Code/invoicer/internal/service/invoice"
	transporthttp "github.com/Additional-Code/invoicer/internal/transport/http"
	"github.com/Additional-Code/invoicer/internal/worker"
	workerinvoice "github.com/Additional-Code/invoicer/internal/worker/invoice"
)

// Infra provides configuration, logging, storage and messaging without any
// domain modules. Migrations and seeders run on top of it.
var Infra = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	revalidate.Module,
	repositoryinvoice.Module,
	serviceinvoice.Module,
)

// HTTP wires the HTTP transport and the gRPC health server on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Infra,
	worker.Module,
	workerinvoice.Module,
)

// Module is the default application wiring.
var Module = HTTP
