package main

import (
	"os"

	"fragsplit/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
