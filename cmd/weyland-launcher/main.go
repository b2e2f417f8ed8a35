package main

import "github.com/weyland-labs/weyland-launcher/cmd/weyland-launcher/cmd"

func main() {
	cmd.Execute()
}
