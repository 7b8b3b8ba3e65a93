// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package fileaccess

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FSAccess implements FileAccess on the local filesystem
type FSAccess struct {
}

func (a *FSAccess) ListObjects(rootPath string, prefix string) ([]string, error) {
	result := []string{}

	// path.Join cleans ./ so the trimming below matches
	rootOnly := path.Join(rootPath)
	fullPath := a.filePath(rootPath, prefix)

	err := filepath.Walk(fullPath, func(pathFound string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			toSave := filepath.ToSlash(pathFound)
			if strings.HasPrefix(toSave, rootOnly+"/") {
				toSave = toSave[len(rootOnly)+1:]
			}
			result = append(result, toSave)
		}
		return nil
	})

	sort.Strings(result)
	return result, err
}

func (a *FSAccess) ReadObject(rootPath string, path string) ([]byte, error) {
	return os.ReadFile(a.filePath(rootPath, path))
}

func (a *FSAccess) WriteObject(rootPath string, path string, data []byte) error {
	fullPath := a.filePath(rootPath, path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, data, 0644)
}

func (a *FSAccess) IsNotFoundError(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (a *FSAccess) filePath(rootPath string, filePath string) string {
	return path.Join(rootPath, filePath)
}
