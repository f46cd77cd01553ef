package invoice

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/invoicer/internal/form"
	repo "github.com/Additional-Code/invoicer/internal/repository/invoice"
	"github.com/Additional-Code/invoicer/internal/revalidate"
)

// Module provides the invoice service and the collaborators it depends on.
var Module = fx.Options(
	fx.Provide(
		form.NewSchema,
		func(r *repo.Repository) Store { return r },
		func(p *revalidate.Paths) Invalidator { return p },
		NewService,
	),
)
