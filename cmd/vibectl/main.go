package main

import (
	"github.com/Skamba/VibeSensor-sub002/pkg/cli/sh"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
