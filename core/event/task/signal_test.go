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

package task_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gscode/gscls/core/event/task"
)

func TestSignalFires(t *testing.T) {
	ctx := context.Background()
	signal, fire := task.NewSignal()
	assert.False(t, signal.Fired())

	require.NoError(t, fire(ctx))
	assert.True(t, signal.Fired())
	assert.True(t, signal.Wait(ctx), "waiting on a fired signal returns immediately")
}

func TestSignalWaitHonoursCancellation(t *testing.T) {
	signal, _ := task.NewSignal()
	ctx, cancel := task.WithCancel(context.Background())
	cancel()

	assert.False(t, signal.Wait(ctx), "a cancelled context unblocks the wait")
	assert.False(t, signal.Fired())
}

func TestFiredSignal(t *testing.T) {
	assert.True(t, task.FiredSignal.Fired())
	assert.True(t, task.FiredSignal.Wait(context.Background()))
}

func TestStopHelpers(t *testing.T) {
	ctx, cancel := task.WithCancel(context.Background())
	assert.False(t, task.Stopped(ctx))
	assert.NoError(t, task.StopReason(ctx))

	cancel()
	assert.True(t, task.Stopped(ctx))
	assert.Error(t, task.StopReason(ctx))

	select {
	case <-task.ShouldStop(ctx):
	default:
		t.Error("ShouldStop must be closed after cancellation")
	}
}
