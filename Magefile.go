//go:build mage

// Mage targets for building and checking roslyn-wrapper.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target: build the wrapper binary.
var Default = Build

// Build compiles the roslyn-wrapper binary.
func Build() error {
	return sh.RunV("go", "build", "-o", "roslyn-wrapper", ".")
}

// Dev runs tests, vet and lint, then builds with the race detector.
func Dev() error {
	mg.Deps(Test, Vet, Lint)
	return sh.RunV("go", "build", "-race", "-o", "roslyn-wrapper", ".")
}

// Test runs the test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run")
}

// Install copies the built binary into GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath := os.Getenv("GOPATH")
	if gopath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home: %w", err)
		}
		gopath = filepath.Join(home, "go")
	}
	bin := filepath.Join(gopath, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		return err
	}
	return sh.RunV("cp", "-v", "./roslyn-wrapper", bin+"/")
}
