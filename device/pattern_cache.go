// Copyright 2022 Drone.IO Inc. All rights reserved.
// Use of this source code is governed by the Polyform License
// that can be found in the LICENSE file.

package device

import (
	"regexp"
	"sync"
)

var patternCache sync.Map // string -> *regexp.Regexp

// compileCached compiles pattern once and reuses it across Expect polls,
// since the same pattern is typically re-evaluated many times while
// waiting for a device's buffer to advance.
func compileCached(pattern string) (*regexp.Regexp, error) {
	if v, ok := patternCache.Load(pattern); ok {
		return v.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache.Store(pattern, re)
	return re, nil
}
