package main

import "github.com/mcoot/smartkiosk/internal/cli"

func main() {
	cli.Execute()
}
