//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target executed when none is specified.
var Default = CI

// CI runs the standard pipeline: format, lint, test, build.
func CI() {
	mg.SerialDeps(Format, Lint, Test, Build)
}

// Format updates Go sources using gofmt.
func Format() error {
	return run("go", "fmt", "./...")
}

// Lint executes go vet to perform static analysis.
func Lint() error {
	return run("go", "vet", "./...")
}

// Test runs the full Go test suite.
func Test() error {
	return run("go", "test", "./...")
}

// Build compiles all packages and produces the reviewbot binary.
func Build() error {
	if err := run("go", "build", "./..."); err != nil {
		return err
	}
	ldflags := fmt.Sprintf("-X main.version=%s", resolveVersion())
	return run("go", "build", "-ldflags", ldflags, "-o", "reviewbot", "./cmd/reviewbot")
}

func run(cmd string, args ...string) error {
	if err := sh.RunV(cmd, args...); err != nil {
		return fmt.Errorf("%s %v: %w", cmd, args, err)
	}
	return nil
}

func resolveVersion() string {
	tag, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || strings.TrimSpace(tag) == "" {
		return "v0.0.0"
	}
	return strings.TrimSpace(tag)
}
