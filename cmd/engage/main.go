package main

import "engage/cmd/cli"

func main() {
	cli.Execute()
}
