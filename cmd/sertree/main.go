package main

import (
	"github.com/jrife/sertree/cmd"
)

func main() {
	cmd.Execute()
}
