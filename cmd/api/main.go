package main

import (
	"go.uber.org/fx"

	"github.com/AFrenchWrench/ustat-orders/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
