package main

import "github.com/allez-events/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
