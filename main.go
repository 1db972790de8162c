package main

import (
	"github.com/meridian-fi/vaultsim/cmd"
)

func main() {
	cmd.Execute()
}
