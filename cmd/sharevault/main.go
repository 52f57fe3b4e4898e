// Package main starts sharevault.
package main

import (
	"fmt"
	"os"

	"github.com/yeisme/sharevault/pkg/cmd"
)

//	@title			ShareVault API
//	@version		1.0
//	@description	Quota-bounded file sharing with single-use upload and download signatures.

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
