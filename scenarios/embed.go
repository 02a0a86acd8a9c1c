// Package scenarios bundles the TodoMVC scenario suite run when no paths
// are given on the command line.
package scenarios

import "embed"

// Root is the suite directory inside FS.
const Root = "todomvc"

// FS holds the bundled suite. Files under todomvc/shared are subflows.
//
//go:embed todomvc
var FS embed.FS
