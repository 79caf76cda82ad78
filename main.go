package main

import "scenerelay/cmd"

// scenerelay entry point: see cmd for the serve and migrate commands.
func main() {
	cmd.Execute()
}
