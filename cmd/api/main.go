// Command api runs the invoice HTTP and gRPC servers without the CLI wrapper.
package main

import (
	"time"

	"go.uber.org/fx"

	"github.com/Additional-Code/invoicer/internal/app"
)

func main() {
	fx.New(
		app.Module,
		fx.StartTimeout(30*time.Second),
		fx.StopTimeout(15*time.Second),
	).Run()
}
