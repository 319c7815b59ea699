package main

import "github.com/shiva/shiptrack/cmd/server/command"

func main() {
	command.Execute()
}
