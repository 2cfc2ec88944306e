package main

import "github.com/ethpandaops/callflow/cmd"

func main() {
	cmd.Execute()
}
