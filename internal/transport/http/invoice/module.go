package invoice

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	service "github.com/Additional-Code/invoicer/internal/service/invoice"
)

// Module wires HTTP invoice handlers.
var Module = fx.Options(
	fx.Provide(func(svc *service.Service) *Handler { return NewHandler(svc) }),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
