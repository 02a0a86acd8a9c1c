// Command scenario-runner runs browser-driven scenarios against the
// TodoMVC Vue demo.
package main

import "github.com/devicelab-dev/scenario-runner/pkg/cli"

func main() {
	cli.Execute()
}
