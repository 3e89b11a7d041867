package main

import "github.com/vietddude/feedsync/internal/cli"

func main() {
	cli.Execute()
}
