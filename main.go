package main

import "github.com/voicemap/voicemap/cmd"

func main() {
	cmd.Execute()
}
