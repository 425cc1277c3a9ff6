// Command rpcgate runs and administers the JSON-RPC gateway.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "rpcgate:", err)
		os.Exit(1)
	}
}
