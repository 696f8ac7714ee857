package main

import (
	"os"

	"github.com/daydemir/vhostdoctor/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
