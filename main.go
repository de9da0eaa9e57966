package main

import "github.com/sharedlm/sharedlm/cmd"

func main() {
	cmd.Execute()
}
