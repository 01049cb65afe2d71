package main

import (
	"github.com/jos-tools/kmon/cmd/kmon/cmds"
	"github.com/jos-tools/kmon/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.KmonVersion.Build = Build
	}
	cmds.New().Execute()
}
