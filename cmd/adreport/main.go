package main

import (
	"fmt"
	"os"

	"admira-report/internal/cli"
	"admira-report/internal/config"
)

func main() {
	c := cli.NewCLI(cli.Options{
		Config: config.FromEnv(),
		Output: os.Stdout,
	})

	if err := c.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
