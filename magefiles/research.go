//go:build mage

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Research builds the CLI and researches $TOPIC. Extra flags go in $ARGS,
// e.g. ARGS="--show --archive".
func Research() error {
	mg.Deps(Build)
	topic := os.Getenv("TOPIC")
	if topic == "" {
		return fmt.Errorf("set TOPIC, e.g. TOPIC=\"quantum error correction\" mage research")
	}
	args := []string{topic}
	if extra := os.Getenv("ARGS"); extra != "" {
		args = append(args, strings.Fields(extra)...)
	}
	return sh.RunV(binPath(), args...)
}

// Sources lists the source catalog.
func Sources() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "sources")
}

// History lists archived runs, or searches them when $QUERY is set.
func History() error {
	mg.Deps(Build)
	if q := os.Getenv("QUERY"); q != "" {
		return sh.RunV(binPath(), "history", "--search", q)
	}
	return sh.RunV(binPath(), "history")
}
