// # cmd/depmatrix/main.go
package main

import (
	"os"

	"depmatrix/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
