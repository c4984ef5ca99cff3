package main

import (
	"os"

	"github.com/llehouerou/shelf/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
