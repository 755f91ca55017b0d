// Command logpipe sends lines read from stdin through a configured log
// pipeline.
//
//	tail -F app.out | logpipe --config logging.yaml --line-level WARNING
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
