package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errPasswordEmpty    = errors.New("password cannot be empty")
)

func isTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// readPasswordSecure reads a password from stdin without echo, falling
// back to a plain buffered read when stdin isn't a terminal (piped input).
func readPasswordSecure(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if !isTerminal() {
		reader := bufio.NewReader(os.Stdin)
		pw, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(pw, "\r\n"), nil
	}

	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// readPasswordInteractive prompts for a password, with confirmation when
// confirm is true (packing) to catch typos before anything is sealed.
func readPasswordInteractive(confirm bool) (string, error) {
	password, err := readPasswordSecure("Password: ")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", errPasswordEmpty
	}
	if confirm {
		again, err := readPasswordSecure("Confirm password: ")
		if err != nil {
			return "", err
		}
		if password != again {
			return "", errPasswordMismatch
		}
	}
	return password, nil
}

func readPasswordFromStdin() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	pw, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(pw, "\r\n"), nil
}
