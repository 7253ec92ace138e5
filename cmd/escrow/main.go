package main

import (
	"github.com/datamarket/escrow-agent/cmd/escrow/cmd"
)

func main() {
	cmd.Execute()
}
