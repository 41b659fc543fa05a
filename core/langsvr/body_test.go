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

package langsvr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBodyPositions(t *testing.T) {
	b := NewBody("ab\ncd\n\nefg")

	for _, tc := range []struct {
		offset int
		pos    Position
	}{
		{0, Position{1, 1}},
		{1, Position{1, 2}},
		{3, Position{2, 1}},
		{4, Position{2, 2}},
		{6, Position{3, 1}},
		{7, Position{4, 1}},
		{9, Position{4, 3}},
	} {
		assert.Equal(t, tc.pos, b.Position(tc.offset), "offset %d", tc.offset)
		assert.Equal(t, tc.offset, b.Offset(tc.pos), "position %v", tc.pos)
	}
}

func TestBodyGetRange(t *testing.T) {
	b := NewBody("hello\nworld")
	rng := Range{Position{1, 1}, Position{1, 6}}
	assert.Equal(t, "hello", b.GetRange(rng))

	all := b.FullRange()
	assert.Equal(t, "hello\nworld", b.GetRange(all))
}

func TestBodyReplace(t *testing.T) {
	b := NewBody("x = 1;")
	edited := b.Replace(Range{Position{1, 5}, Position{1, 6}}, "42")
	assert.Equal(t, "x = 42;", edited.Text())

	// Full replacement.
	edited = b.Replace(b.FullRange(), "y = 2;")
	assert.Equal(t, "y = 2;", edited.Text())
}

func TestEncodeSemanticTokens(t *testing.T) {
	tokens := []SemanticToken{
		{Line: 1, Column: 1, Length: 8, Type: 8, Modifiers: 0},
		{Line: 1, Column: 10, Length: 3, Type: 5, Modifiers: 1},
		{Line: 3, Column: 2, Length: 4, Type: 3, Modifiers: 0},
	}
	enc := EncodeSemanticTokens(tokens)
	assert.Equal(t, []int{
		0, 0, 8, 8, 0,
		0, 9, 3, 5, 1,
		2, 1, 4, 3, 0,
	}, enc.Data)
}
