package main

import (
	"os"

	avamemcmder "github.com/llmpagina/avamem/cmd/avamem"
)

func main() {
	cmd := avamemcmder.NewAvamemCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
