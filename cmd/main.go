package main

import "github.com/okian/contestlens/internal/cli"

func main() {
	cli.Execute()
}
