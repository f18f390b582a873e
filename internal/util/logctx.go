// Copyright 2026 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package util

import (
	"context"
	"fmt"

	"github.com/hasura/ndc-embedded/internal/log"
)

type loggerContextKey struct{}

// WithLogger returns a copy of ctx carrying l, retrievable with
// LoggerFromContext. Source adapters that log during connect/introspect
// (looker) pull it back out rather than threading a logger through every
// constructor; nothing in the server sets it on request contexts.
func WithLogger(ctx context.Context, l log.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// LoggerFromContext retrieves the logger set by WithLogger, erroring if ctx
// was never annotated with one.
func LoggerFromContext(ctx context.Context) (log.Logger, error) {
	l, ok := ctx.Value(loggerContextKey{}).(log.Logger)
	if !ok {
		return nil, fmt.Errorf("util: no logger set on context")
	}
	return l, nil
}
