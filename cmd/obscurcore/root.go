package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/obscurcore/obscurcore/internal/log"
)

// version is set by the release build; "dev" otherwise.
var version = "dev"

var rootVerbose bool

var rootCmd = &cobra.Command{
	Use:   "obscurcore",
	Short: "Encrypted, authenticated multi-item archives",
	Long: `obscurcore packs files and directories into a single encrypted,
authenticated archive and reads them back out:
  - UM1 hybrid or shared-symmetric-key package encryption
  - ChaCha20/AES/Serpent payload ciphers with Encrypt-then-MAC framing
  - Simple or Frameshift-padded payload multiplexing across items`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if rootVerbose {
			log.EnableDebugLogging()
		}
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVar(&rootVerbose, "verbose", false, "log internal write/read procedure steps to stderr")
}

// Execute runs the CLI, honoring SIGINT/SIGTERM as a context cancellation
// so an in-progress pack/unpack stops at its next scheduler tick instead
// of leaving a half-written archive with no indication why.
func Execute(v string) error {
	version = v
	rootCmd.Version = v

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ncancelling…")
		cancel()
	}()
	defer signal.Stop(sigCh)

	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}
