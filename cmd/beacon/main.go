package main

import "github.com/oshokin/safety-beacon/cmd/beacon/cmd"

func main() {
	cmd.Execute()
}
