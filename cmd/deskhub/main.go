package main

import "deskhub.org/internal/cli"

func main() {
	cli.Execute()
}
