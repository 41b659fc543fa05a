// Copyright (C) 2024 The gscls Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gscode/gscls/gsc/token"
)

func TestCodePartitions(t *testing.T) {
	for code := range table {
		switch {
		case code >= 1000 && code < 2000:
			assert.Equal(t, "preprocessor", code.Source(), "%d", code)
		case code >= 2000 && code < 3000:
			assert.Contains(t, []string{"lexer", "parser"}, code.Source(), "%d", code)
		case code >= 3000 && code < 4000:
			assert.Contains(t, []string{"semantic", "signature", "dataflow"}, code.Source(), "%d", code)
		case code >= 8000 && code < 9000:
			assert.Equal(t, "ide", code.Source(), "%d", code)
		case code >= 9000 && code < 9008:
			assert.Equal(t, "internal", code.Source(), "%d", code)
		default:
			t.Errorf("code %d outside the documented partitions", code)
		}
	}
}

func TestFormatting(t *testing.T) {
	rng := token.Range{Start: token.Position{Line: 2, Character: 4}}
	d := New(rng, DuplicateCaseLabel, "1")
	assert.Equal(t, DuplicateCaseLabel, d.Code)
	assert.Equal(t, "duplicate case label '1'", d.Message)
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, rng, d.Range)

	hint := New(token.Range{}, InactivePreprocessorBranch)
	assert.Equal(t, SeverityHint, hint.Severity)
	assert.True(t, hint.Unnecessary)
}

func TestListHelpers(t *testing.T) {
	l := Diagnostics{}
	l.Add(token.Range{}, NotDefined, "foo")
	l.Add(token.Range{}, BelowVmRefreshRate, 0.05)
	assert.True(t, l.HasErrors())

	other := Diagnostics{}
	other.Merge(l)
	assert.Len(t, other, 2)
}
