package main

import "healthguard/internal/cli"

func main() {
	cli.Execute()
}
