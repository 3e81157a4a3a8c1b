package main

import "github.com/finbridge/watchsync/cmd/watchsyncd/cmd"

func main() {
	cmd.Execute()
}
