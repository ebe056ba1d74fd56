package main

import (
	"os"

	"vmrelay/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
