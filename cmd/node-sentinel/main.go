package main

import "github.com/oshokin/node-sentinel/cmd/node-sentinel/cmd"

func main() {
	cmd.Execute()
}
