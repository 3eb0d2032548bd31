package main

import "btc-trend-watch/internal/cli"

func main() {
	cli.Execute()
}
