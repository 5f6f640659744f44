package main

import "logbook/internal/cli"

func main() {
	cli.Execute()
}
