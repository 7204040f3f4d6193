package main

import "github.com/tanq16/ruget/cmd"

func main() {
	cmd.Execute()
}
