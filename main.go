package main

import "github.com/floatchat/floatchat/cmd"

func main() {
	cmd.Execute()
}
