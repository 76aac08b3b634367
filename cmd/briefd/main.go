// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the briefdesk backend.
package main

import (
	"os"

	"github.com/briefdesk/briefdesk/cmd/briefd/app"
	"github.com/briefdesk/briefdesk/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
