package main

import "github.com/scansetu/scansetu/cmd/scansetuctl/cmd"

func main() {
	cmd.Execute()
}
