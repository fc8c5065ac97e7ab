// umbra - render web pages with a dark colour scheme
//
// umbra rewrites the colours of HTML pages and stylesheets so that light
// pages read dark, and keeps a page consistent while it changes.
//
// Copyright (c) 2025 John Mylchreest
// Licensed under the MIT License
package main

import (
	"os"

	"github.com/jmylchreest/umbra/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
