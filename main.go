package main

import "github.com/JuggerNaut63/AA/cmd"

func main() {
	cmd.Execute()
}
