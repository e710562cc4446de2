package main

import (
	"github.com/foomo/actions-cache/cmd"
)

func main() {
	cmd.Execute()
}
