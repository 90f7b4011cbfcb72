package main

import "github.com/XavTo/Blockchain/internal/cli"

func main() {
	cli.Execute()
}
