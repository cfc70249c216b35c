package main

import (
	"fmt"
	"os"

	"github.com/TerronesDiaz/socketbench/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "socketbench:", err)
		os.Exit(1)
	}
}
