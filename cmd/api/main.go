package main

import "maplocate/api/cmd/api/cmd"

func main() {
	cmd.Execute()
}
