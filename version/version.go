// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

// Package version holds the engine's build version, overridden at link
// time via -ldflags.
package version

// Version is the engine's build version. Set with:
//
//	-ldflags "-X github.com/fos-lang/fos-engine/version.Version=1.2.3"
var Version = "dev"
