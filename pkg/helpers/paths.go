// Caprica
// Copyright (c) 2026 The Caprica Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Caprica.
//
// Caprica is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Caprica is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Caprica.  If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ndf-zz/caprica/pkg/config"
)

// UserDir is the portable install directory looked for next to the binary.
const UserDir = "user"

var (
	userDirCache       string
	userDirCacheExists bool
	userDirOnce        sync.Once
)

func ExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}

	return filepath.Dir(exe)
}

// HasUserDir checks if a "user" directory exists next to the binary and
// returns its path. When present it holds both config and logs. The result
// is cached after the first call.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exeDir := ExeDir()
		if exeDir == "" {
			return
		}
		userDirCache, userDirCacheExists = statDir(filepath.Join(exeDir, UserDir))
	})

	return userDirCache, userDirCacheExists
}

func statDir(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return path, true
}

// ConfigDir is where config.toml lives.
func ConfigDir() string {
	if v, ok := HasUserDir(); ok {
		return v
	}
	return appDir(os.UserConfigDir)
}

// LogDir is where the rotating log file is written.
func LogDir() string {
	if v, ok := HasUserDir(); ok {
		return filepath.Join(v, "logs")
	}
	return appDir(os.UserCacheDir)
}

func appDir(base func() (string, error)) string {
	dir, err := base()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, config.AppName)
}

// RunDir holds the PID file of the running service.
func RunDir() string {
	if v, ok := HasUserDir(); ok {
		return v
	}
	return filepath.Join(os.TempDir(), config.AppName)
}
