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

// Package fileaccess reads and writes scene archive objects on the local
// filesystem or in an S3 bucket behind one interface.
package fileaccess

import (
	"fmt"
	"strings"
)

// FileAccess is a generic interface to an object store. For local files the
// bucket is the root directory.
type FileAccess interface {
	ListObjects(bucket string, prefix string) ([]string, error)

	ReadObject(bucket string, path string) ([]byte, error)
	WriteObject(bucket string, path string, data []byte) error

	IsNotFoundError(err error) bool
}

// Location names a bucket (or root directory) and a key prefix inside it
type Location struct {
	Bucket string
	Prefix string
}

// Key joins the location prefix with a relative object path
func (l Location) Key(rel string) string {
	if l.Prefix == "" {
		return rel
	}
	return strings.TrimSuffix(l.Prefix, "/") + "/" + strings.TrimPrefix(rel, "/")
}

// ParseS3URL splits s3://bucket/prefix into a location
func ParseS3URL(url string) (Location, error) {
	trimmed := strings.TrimPrefix(url, "s3://")
	if trimmed == url {
		return Location{}, fmt.Errorf("not a valid S3 url: %v", url)
	}
	slashPos := strings.Index(trimmed, "/")
	if slashPos == 0 || trimmed == "" {
		return Location{}, fmt.Errorf("failed to get bucket from S3 url: %v", url)
	}
	if slashPos < 0 {
		return Location{Bucket: trimmed}, nil
	}
	return Location{Bucket: trimmed[:slashPos], Prefix: strings.Trim(trimmed[slashPos+1:], "/")}, nil
}
