package main

import "github.com/nextlevelbuilder/botsim/cmd"

func main() {
	cmd.Execute()
}
