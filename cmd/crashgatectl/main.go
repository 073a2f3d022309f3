package main

import (
	"os"

	"github.com/crashgate-systems/crashgate/internal/ctl"
)

func main() {
	if err := ctl.Execute(); err != nil {
		os.Exit(1)
	}
}
