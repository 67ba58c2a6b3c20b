package main

import (
	"fmt"

	"git.home.luguber.info/inful/mdgen/internal/version"
)

// VersionCmd prints the version together with build metadata, unlike the
// --version flag which prints the bare version string.
type VersionCmd struct{}

func (v *VersionCmd) Run(root *CLI) error {
	fmt.Printf("mdgen %s\n", version.Version)
	fmt.Printf("  commit: %s\n", version.GitCommit)
	fmt.Printf("  built:  %s\n", version.BuildTime)
	return nil
}
