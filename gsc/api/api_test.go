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

package api_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/gsc/api"
)

func writeFeed(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const gscFeed = `{
	"languageId": "GSC",
	"gameId": "t7",
	"revision": 3,
	"api": [
		{
			"name": "GetTime",
			"description": "Returns the level time in milliseconds.",
			"example": "t = gettime();",
			"overloads": [
				{"parameters": [], "return": "int"}
			]
		},
		{
			"name": "IPrintLn",
			"description": "Prints to all clients.",
			"overloads": [
				{"parameters": [{"name": "text"}], "return": ""},
				{"parameters": [{"name": "text"}, {"name": "more", "optional": true}], "vararg": true}
			]
		}
	]
}`

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFeed(t, dir, "gsc.json", gscFeed)

	libs, err := api.Load(context.Background(), []api.Source{{File: path}})
	require.NoError(t, err)

	lib := libs["gsc"]
	require.NotNil(t, lib)
	assert.Equal(t, "t7", lib.GameID)
	assert.Equal(t, 3, lib.Revision)

	// Case insensitive lookup; functions live in the sys namespace and are
	// implicit.
	fn, ok := lib.Lookup("gettime")
	require.True(t, ok)
	assert.Equal(t, "sys", fn.Namespace)
	assert.True(t, fn.Implicit)
	assert.Equal(t, 0, fn.MinArgs)
	assert.Equal(t, 0, fn.MaxArgs)
	assert.Contains(t, fn.Doc, "milliseconds")
	assert.Contains(t, fn.Doc, "t = gettime();")

	_, ok = lib.Lookup("GETTIME")
	assert.True(t, ok)
}

func TestOverloadBounds(t *testing.T) {
	dir := t.TempDir()
	path := writeFeed(t, dir, "gsc.json", gscFeed)
	libs, err := api.Load(context.Background(), []api.Source{{File: path}})
	require.NoError(t, err)

	fn, ok := libs["gsc"].Lookup("iprintln")
	require.True(t, ok)
	// The loosest bounds across overloads: one required arg, vararg tail.
	assert.Equal(t, 1, fn.MinArgs)
	assert.True(t, fn.Variadic())
}

func TestNewestRevisionWins(t *testing.T) {
	dir := t.TempDir()
	older := writeFeed(t, dir, "old.json",
		`{"languageId": "gsc", "gameId": "t7", "revision": 1, "api": [{"name": "onlyold", "overloads": []}]}`)
	newer := writeFeed(t, dir, "new.json",
		`{"languageId": "gsc", "gameId": "t7", "revision": 2, "api": [{"name": "onlynew", "overloads": []}]}`)

	libs, err := api.Load(context.Background(), []api.Source{{File: older}, {File: newer}})
	require.NoError(t, err)

	lib := libs["gsc"]
	assert.Equal(t, 2, lib.Revision)
	_, ok := lib.Lookup("onlynew")
	assert.True(t, ok)
	_, ok = lib.Lookup("onlyold")
	assert.False(t, ok)

	// Order independence: the newer revision wins either way.
	libs, err = api.Load(context.Background(), []api.Source{{File: newer}, {File: older}})
	require.NoError(t, err)
	assert.Equal(t, 2, libs["gsc"].Revision)
}

func TestLoadFailure(t *testing.T) {
	_, err := api.Load(context.Background(), []api.Source{{File: "/nonexistent/feed.json"}})
	assert.Error(t, err)
}

func TestRegistryLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeFeed(t, dir, "gsc.json", gscFeed)

	r := &api.Registry{}
	require.NoError(t, r.LoadRegistry(context.Background(), []api.Source{{File: path}}))
	require.NotNil(t, r.Library("gsc"))
	assert.Nil(t, r.Library("csc"))

	// A second load keeps the first result.
	require.NoError(t, r.LoadRegistry(context.Background(), nil))
	assert.NotNil(t, r.Library("gsc"))
}
