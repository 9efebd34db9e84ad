// Command collector crawls Riot match history breadth-first from a set of
// seed players and writes one row per eligible ranked match.
package main

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute runs the root command and maps its outcome to a process exit code.
func execute(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			log.Error(ee.err)
		}
		return ee.code
	}
	// cobra flag parsing errors land here
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitConfig
}
