package main

import (
	"VibingStorage/cmd"
)

func main() {
	cmd.Execute()
}
