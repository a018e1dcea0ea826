package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/util"
	"github.com/obscurcore/obscurcore/pkg/obscurcore"
)

func init() {
	unpackCmd.SilenceErrors = true
	unpackCmd.SilenceUsage = true
	rootCmd.AddCommand(unpackCmd)

	unpackCmd.Flags().StringVarP(&unpackInput, "input", "i", "", "archive to unpack")
	unpackCmd.Flags().StringVarP(&unpackOutput, "output", "o", ".", "directory to extract into")
	unpackCmd.Flags().StringVarP(&unpackPassword, "password", "p", "", "archive password")
	unpackCmd.Flags().BoolVarP(&unpackPasswordStdin, "password-stdin", "P", false, "read password from stdin")
	unpackCmd.Flags().BoolVarP(&unpackQuiet, "quiet", "q", false, "suppress progress output")
	_ = unpackCmd.MarkFlagRequired("input")
}

var (
	unpackInput         string
	unpackOutput        string
	unpackPassword      string
	unpackPasswordStdin bool
	unpackQuiet         bool
)

var unpackCmd = &cobra.Command{
	Use:     "unpack",
	Short:   "Unpack an obscurcore archive",
	Example: `  obscurcore unpack -i bundle.obscr -o restored/`,
	RunE:    runUnpack,
}

func runUnpack(cmd *cobra.Command, args []string) error {
	in, err := os.Open(unpackInput)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer in.Close()

	password, err := resolveUnpackPassword()
	if err != nil {
		return err
	}

	r := obscurcore.NewPackageReader([]byte(password))
	view, handle, err := r.ReadManifest(in)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	rep := newReporter(unpackQuiet)
	rep.info("unpacking %d item(s) from %s into %s", len(view.Items), unpackInput, unpackOutput)

	if err := os.MkdirAll(unpackOutput, 0o700); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var opened []io.Closer
	defer func() {
		for _, c := range opened {
			_ = c.Close()
		}
	}()

	sinkFor := func(item *manifest.PayloadItem) (io.Writer, error) {
		dest := filepath.Join(unpackOutput, filepath.FromSlash(item.RelativePath))
		rel, err := filepath.Rel(filepath.Clean(unpackOutput), dest)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("item %s escapes output directory", item.RelativePath)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", item.RelativePath, err)
		}
		f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", dest, err)
		}
		opened = append(opened, f)
		return f, nil
	}

	start := time.Now()
	if err := r.ExtractTo(cmd.Context(), in, handle, sinkFor); err != nil {
		rep.printError("%v", err)
		return err
	}
	elapsed := util.Timeify(int(time.Since(start).Seconds()))

	rep.printSuccess("unpacked successfully into %s in %s", unpackOutput, elapsed)
	return nil
}

func resolveUnpackPassword() (string, error) {
	switch {
	case unpackPasswordStdin:
		return readPasswordFromStdin()
	case unpackPassword != "":
		return unpackPassword, nil
	default:
		return readPasswordInteractive(false)
	}
}
