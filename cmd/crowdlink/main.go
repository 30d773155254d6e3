package main

import (
	"fmt"
	"os"

	"github.com/luhtfiimanal/crowdlink/internal/buildinfo"
	"github.com/luhtfiimanal/crowdlink/internal/cmd"
)

// version is stamped at link time:
//
//	go build -ldflags "-X main.version=v1.2.0" ./cmd/crowdlink
var version string

func main() {
	buildinfo.SetVersion(version)
	root := cmd.NewRootCommand()
	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
