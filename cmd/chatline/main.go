package main

import "github.com/nfrund/chatline/cmd/chatline/cmd"

func main() {
	cmd.Execute()
}
