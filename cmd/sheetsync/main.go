package main

import "github.com/vietddude/sheetsync/internal/cli"

func main() {
	cli.Execute()
}
