// authscope captures requests carrying an Authorization header, from a live
// Chromium tab or a HAR file, and serves them with decoded JWTs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
