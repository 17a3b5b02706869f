//go:build !unix

// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package detection

import (
	"fmt"
	"os"
)

// CheckAccess reports whether path exists. Permission bits are not
// checked on this platform.
func CheckAccess(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("access %s: %w", path, err)
	}
	return nil
}
