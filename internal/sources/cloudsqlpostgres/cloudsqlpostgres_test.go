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

package cloudsqlpostgres

import "testing"

func TestIPDialOptions(t *testing.T) {
	tcs := []struct {
		desc   string
		ipType string
		want   int
	}{
		{desc: "empty means public, no options", ipType: "", want: 0},
		{desc: "public is the default, no options", ipType: "public", want: 0},
		{desc: "private adds one option", ipType: "private", want: 1},
		{desc: "psc adds one option", ipType: "psc", want: 1},
	}
	for _, tc := range tcs {
		t.Run(tc.desc, func(t *testing.T) {
			got := ipDialOptions(tc.ipType)
			if len(got) != tc.want {
				t.Fatalf("ipDialOptions(%q) returned %d options, want %d", tc.ipType, len(got), tc.want)
			}
		})
	}
}

func TestConfigSourceConfigKind(t *testing.T) {
	cfg := Config{}
	if cfg.SourceConfigKind() != SourceKind {
		t.Errorf("expected %s, got %s", SourceKind, cfg.SourceConfigKind())
	}
}
