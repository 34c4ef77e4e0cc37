package main

import "github.com/mcoot/estimategame/internal/cli"

func main() {
	cli.Execute()
}
