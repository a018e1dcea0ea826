// Command obscurcore packs files and directories into an encrypted,
// authenticated archive and unpacks them back out (spec.md §6.1-§6.3).
package main

import "os"

func main() {
	if err := Execute(version); err != nil {
		os.Exit(1)
	}
}
