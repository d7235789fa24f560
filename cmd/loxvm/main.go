package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/loxlang/loxvm/internal/clitool"
)

func main() {
	c := &clitool.Cmd{}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
