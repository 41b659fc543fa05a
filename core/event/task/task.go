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

// Package task provides the building blocks for cancellable units of
// work: the Task function type, completion Signals and the context
// cancellation helpers the pipeline checks at its stage boundaries.
package task

import "context"

// Task is the unit of work used in the task system. Tasks should
// generally be reentrant; they may be run more than once and should be
// agnostic as to whether they run in parallel.
type Task func(context.Context) error
