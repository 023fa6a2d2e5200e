package cli

import "fmt"

// Version is stamped by the release build via -ldflags
var Version = "dev"

// VersionCmd shows the binary version
type VersionCmd struct{}

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		_, err := fmt.Fprintf(globals.Stdout, `{"type":"version","version":"%s"}`+"\n", Version)
		return err
	}
	_, err := fmt.Fprintf(globals.Stdout, "conduit %s\n", Version)
	return err
}
