package main

import "arrively-api/cmd"

func main() {
	cmd.Execute()
}
