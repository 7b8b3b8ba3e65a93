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
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// MemoryS3 is an in-memory S3 client supporting the calls S3Access makes.
// PageSize limits listing pages so continuation can be exercised.
type MemoryS3 struct {
	s3iface.S3API

	PageSize int

	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryS3() *MemoryS3 {
	return &MemoryS3{PageSize: 1000, objects: map[string][]byte{}}
}

func (m *MemoryS3) key(bucket, path string) string {
	return bucket + "/" + path
}

func (m *MemoryS3) PutObject(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[m.key(*in.Bucket, *in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *MemoryS3) GetObject(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[m.key(*in.Bucket, *in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *MemoryS3) ListObjectsV2(in *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := m.key(*in.Bucket, aws.StringValue(in.Prefix))
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, *in.Bucket+"/"))
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start = sort.SearchStrings(keys, *in.ContinuationToken)
	}
	end := start + m.PageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, &s3.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}
