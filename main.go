package main

import (
	"github.com/sidkik/dirsync/cmd"
	"github.com/sidkik/dirsync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
