package main

import "github.com/steelcut-optimizer/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
