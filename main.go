package main

import "github.com/Yates-Labs/stepcall/cmd"

func main() {
	cmd.Execute()
}
