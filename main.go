package main

import (
	"os"

	"github.com/nicozefrench/diveteacher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
