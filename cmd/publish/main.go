package main

import (
	"os"

	"github.com/tomasbasham/deploy-publisher/internal/cmd"
)

func main() {
	command := cmd.NewRootCommand()
	if code := cmd.Execute(command); code != 0 {
		os.Exit(code)
	}
}
