package main

import "github.com/scansetu/scansetu/cmd/scansetuapi/cmd"

func main() {
	cmd.Execute()
}
