// lrmidi is a small utility around the observer API: list ports, monitor an
// input, send messages, and watch hotplug events.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
