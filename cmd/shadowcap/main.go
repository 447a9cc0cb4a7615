package main

import "github.com/bryanchriswhite/shadowcap/cmd/shadowcap/commands"

func main() {
	commands.Execute()
}
