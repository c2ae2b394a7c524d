// Command tokenctl manages calculation token registrations from the shell.
package main

import (
	"os"

	"github.com/JonMunkholm/calctoken/cmd/tokenctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
