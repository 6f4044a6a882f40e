package main

import (
	"os"

	"github.com/AFrenchWrench/ustat-orders/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
