// Command pennant validates, explains and serves configuration payloads.
//
// Usage:
//
//	pennant validate flags.json
//	pennant explain flags.json --key new-cart --id user-42 --platform ios
//	pennant serve flags.yaml --addr :8080
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
