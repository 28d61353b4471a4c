package main

import "github.com/skycoin/stopwait/cmd/stopwait/commands"

func main() {
	commands.Execute()
}
