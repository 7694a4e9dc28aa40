package main

import "github.com/reprolab/reproagent/internal/cli"

func main() {
	cli.Execute()
}
