package main

import "github.com/youmna-rabie/line-assistant/internal/cli"

func main() {
	cli.Execute()
}
