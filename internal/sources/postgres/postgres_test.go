// Copyright 2025 Google LLC
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

package postgres_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/hasura/ndc-embedded/internal/sources/postgres"
)

func TestConvertParamMapToRawQuery(t *testing.T) {
	tcs := []struct {
		desc string
		in   map[string]string
		want string
	}{
		{desc: "nil param", in: nil, want: ""},
		{desc: "single query param", in: map[string]string{"foo": "bar"}, want: "foo=bar"},
		{desc: "more than one query param", in: map[string]string{"foo": "bar", "hello": "world"}, want: "foo=bar&hello=world"},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			got := postgres.ConvertParamMapToRawQuery(tc.in)
			if strings.Contains(got, "&") {
				splitGot := strings.Split(got, "&")
				sort.Strings(splitGot)
				got = strings.Join(splitGot, "&")
			}
			if got != tc.want {
				t.Fatalf("incorrect conversion: got %s want %s", got, tc.want)
			}
		})
	}
}

func TestParseQueryExecMode(t *testing.T) {
	tcs := []struct {
		desc    string
		in      string
		want    pgx.QueryExecMode
		wantErr bool
	}{
		{desc: "empty (default)", in: "", want: pgx.QueryExecModeCacheStatement},
		{desc: "cache_statement", in: "cache_statement", want: pgx.QueryExecModeCacheStatement},
		{desc: "cache_describe", in: "cache_describe", want: pgx.QueryExecModeCacheDescribe},
		{desc: "describe_exec", in: "describe_exec", want: pgx.QueryExecModeDescribeExec},
		{desc: "exec", in: "exec", want: pgx.QueryExecModeExec},
		{desc: "simple_protocol", in: "simple_protocol", want: pgx.QueryExecModeSimpleProtocol},
		{desc: "invalid mode", in: "invalid_mode", wantErr: true},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := postgres.ParseQueryExecMode(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseQueryExecMode() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Errorf("ParseQueryExecMode() = %v, want %v", got, tc.want)
			}
		})
	}
}
