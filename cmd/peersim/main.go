package main

import (
	"kvstore/cmd/peersim/cmd"
)

func main() {
	cmd.Execute()
}
