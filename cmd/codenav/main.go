package main

import (
	"os"

	"codenav/internal/navcli"
)

func main() {
	if err := navcli.Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
