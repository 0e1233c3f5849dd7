package main

import "raglite/internal/cli"

func main() {
	cli.Execute()
}
