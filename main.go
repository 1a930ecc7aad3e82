package main

import "github.com/joshdurbin/lift-mcp/internal/cmd"

func main() {
	cmd.Execute()
}
