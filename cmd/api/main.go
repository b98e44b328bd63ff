package main

import (
	"fmt"
	"os"

	_ "navconsole/api/swagger" // swagger docs
	"navconsole/cmd/api/cli"
)

// Set via -ldflags at build time
var version = "dev"

// @title           Navigation Console Admin API
// @version         1.0
// @description     User, role and permission administration with a route-level authorization gate.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
