package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/obscurcore/obscurcore/internal/config"
	"github.com/obscurcore/obscurcore/internal/util"
	"github.com/obscurcore/obscurcore/pkg/obscurcore"
)

func init() {
	packCmd.SilenceErrors = true
	packCmd.SilenceUsage = true
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().StringArrayVarP(&packInput, "input", "i", nil, "file or directory to add (repeatable)")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output archive path")
	packCmd.Flags().StringVarP(&packPassword, "password", "p", "", "archive password")
	packCmd.Flags().BoolVarP(&packPasswordStdin, "password-stdin", "P", false, "read password from stdin")
	packCmd.Flags().StringVar(&packLayout, "layout", "Simple", "payload layout: Simple or Frameshift")
	packCmd.Flags().StringVar(&packTempStorage, "temp-storage", "", "write the payload body through this file instead of memory")
	packCmd.Flags().BoolVarP(&packQuiet, "quiet", "q", false, "suppress progress output")
	packCmd.Flags().BoolVarP(&packYes, "yes", "y", false, "overwrite output without prompting")
	packCmd.Flags().BoolVar(&packGenPassword, "generate-password", false, "generate a random password instead of prompting")
	packCmd.Flags().IntVar(&packGenPasswordLen, "generate-password-length", 24, "length of a generated password")
	_ = packCmd.MarkFlagRequired("input")
}

var (
	packInput          []string
	packOutput         string
	packPassword       string
	packPasswordStdin  bool
	packLayout         string
	packTempStorage    string
	packQuiet          bool
	packYes            bool
	packGenPassword    bool
	packGenPasswordLen int
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack files and directories into an obscurcore archive",
	Example: `  obscurcore pack -i report.pdf -o report.obscr
  obscurcore pack -i docs/ -i notes.txt -o bundle.obscr --layout Frameshift`,
	RunE: runPack,
}

func runPack(cmd *cobra.Command, args []string) error {
	if len(packInput) == 0 {
		return fmt.Errorf("at least one --input is required")
	}

	output := packOutput
	if output == "" {
		if len(packInput) == 1 {
			output = packInput[0] + ".obscr"
		} else {
			output = "archive.obscr"
		}
	}
	if !strings.HasSuffix(output, ".obscr") {
		output += ".obscr"
	}

	if _, err := os.Stat(output); err == nil && !packYes {
		fmt.Fprintf(os.Stderr, "%s already exists. Overwrite? [y/N]: ", output)
		reader := bufio.NewReader(os.Stdin)
		resp, _ := reader.ReadString('\n')
		if s := strings.ToLower(strings.TrimSpace(resp)); s != "y" && s != "yes" {
			return fmt.Errorf("operation cancelled")
		}
	}

	password, err := resolvePackPassword()
	if err != nil {
		return err
	}

	w, err := obscurcore.NewPackageWriter(config.Default().Defaults, []byte(password), nil)
	if err != nil {
		return err
	}
	if err := w.SetPayloadLayout(packLayout); err != nil {
		return err
	}
	if packTempStorage != "" {
		tf, err := os.OpenFile(packTempStorage, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("open temp storage: %w", err)
		}
		defer os.Remove(packTempStorage)
		defer tf.Close()
		w.SetTempStorage(tf)
	}

	for _, in := range packInput {
		info, err := os.Stat(in)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", in, err)
		}
		if info.IsDir() {
			err = w.AddDirectory(in, true)
		} else {
			err = w.AddFile(in)
		}
		if err != nil {
			return fmt.Errorf("adding %s: %w", in, err)
		}
	}

	r := newReporter(packQuiet)
	r.info("packing %d input(s) into %s", len(packInput), output)

	out, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	start := time.Now()
	if err := w.Write(cmd.Context(), out, true); err != nil {
		r.printError("%v", err)
		_ = os.Remove(output)
		return err
	}
	elapsed := util.Timeify(int(time.Since(start).Seconds()))

	info, statErr := os.Stat(output)
	if statErr == nil {
		r.printSuccess("packed successfully: %s (%s) in %s", output, util.Sizeify(info.Size()), elapsed)
	} else {
		r.printSuccess("packed successfully: %s in %s", output, elapsed)
	}
	return nil
}

func resolvePackPassword() (string, error) {
	switch {
	case packGenPassword:
		password, err := util.GenPassword(util.PassgenOptions{
			Length:  packGenPasswordLen,
			Upper:   true,
			Lower:   true,
			Numbers: true,
			Symbols: true,
		})
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		fmt.Fprintf(os.Stderr, "generated password: %s\n", password)
		return password, nil
	case packPasswordStdin:
		return readPasswordFromStdin()
	case packPassword != "":
		return packPassword, nil
	default:
		return readPasswordInteractive(true)
	}
}
