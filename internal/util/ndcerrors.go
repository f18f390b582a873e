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

import "fmt"

// NDCCategory enumerates the connector's error taxonomy.
type NDCCategory string

const (
	CategoryConfigParse           NDCCategory = "CONFIG_PARSE"
	CategoryConfigWrite           NDCCategory = "CONFIG_WRITE"
	CategorySchemaNameClash       NDCCategory = "SCHEMA_NAME_CLASH"
	CategoryCollectionNotFound    NDCCategory = "COLLECTION_NOT_FOUND"
	CategoryUnsupportedPredicate  NDCCategory = "UNSUPPORTED_PREDICATE"
	CategoryVariableNotFound      NDCCategory = "VARIABLE_NOT_FOUND"
	CategoryDuplicateArgument     NDCCategory = "DUPLICATE_ARGUMENT"
	CategoryEngineError           NDCCategory = "ENGINE_ERROR"
	CategoryDecodeError           NDCCategory = "DECODE_ERROR"
	CategoryConcurrentConfigChange NDCCategory = "CONCURRENT_CONFIG_CHANGE"
	CategoryDirectoryNotEmpty      NDCCategory = "DIRECTORY_NOT_EMPTY"
)

// httpStatus maps each category to the status code the façade uses when
// rendering the NDC error envelope.
var httpStatus = map[NDCCategory]int{
	CategoryConfigParse:            500,
	CategoryConfigWrite:            500,
	CategorySchemaNameClash:        500,
	CategoryCollectionNotFound:     404,
	CategoryUnsupportedPredicate:   422,
	CategoryVariableNotFound:       422,
	CategoryDuplicateArgument:      400,
	CategoryEngineError:            500,
	CategoryDecodeError:            500,
	CategoryConcurrentConfigChange: 409,
	CategoryDirectoryNotEmpty:      409,
}

// NDCError is the typed error every connector component returns; it carries
// enough information for the façade to render the NDC error envelope
// (message + details) without re-deriving the category from string matching.
type NDCError struct {
	Cat     NDCCategory
	Msg     string
	Details map[string]any
	Cause   error
}

var _ ToolboxError = &NDCError{}

func (e *NDCError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

// Category satisfies ToolboxError; NDC errors are always server-side.
func (e *NDCError) Category() ErrorCategory { return CategoryServer }

func (e *NDCError) Unwrap() error { return e.Cause }

// NDCCategory returns the fine-grained connector category, distinct from the
// coarse agent/server split that Category() reports.
func (e *NDCError) NDCCategory() NDCCategory { return e.Cat }

// HTTPStatus returns the status code the façade should use for this error.
func (e *NDCError) HTTPStatus() int {
	if code, ok := httpStatus[e.Cat]; ok {
		return code
	}
	return 500
}

func NewNDCError(cat NDCCategory, msg string, cause error) *NDCError {
	return &NDCError{Cat: cat, Msg: msg, Cause: cause}
}

func NewNDCErrorDetails(cat NDCCategory, msg string, cause error, details map[string]any) *NDCError {
	return &NDCError{Cat: cat, Msg: msg, Cause: cause, Details: details}
}

func SchemaNameClash(table string) *NDCError {
	return NewNDCErrorDetails(CategorySchemaNameClash,
		fmt.Sprintf("table name %q collides with a scalar type name", table), nil,
		map[string]any{"table": table})
}

func CollectionNotFound(name string) *NDCError {
	return NewNDCErrorDetails(CategoryCollectionNotFound,
		fmt.Sprintf("unknown collection %q", name), nil,
		map[string]any{"collection": name})
}

func UnsupportedPredicate(reason string) *NDCError {
	return NewNDCError(CategoryUnsupportedPredicate, reason, nil)
}

func VariableNotFound(name string) *NDCError {
	return NewNDCErrorDetails(CategoryVariableNotFound,
		fmt.Sprintf("variable %q not found in active binding", name), nil,
		map[string]any{"variable": name})
}

func DuplicateArgument(name string) *NDCError {
	return NewNDCErrorDetails(CategoryDuplicateArgument,
		fmt.Sprintf("duplicate argument %q", name), nil,
		map[string]any{"argument": name})
}

func EngineError(msg string, cause error) *NDCError {
	return NewNDCError(CategoryEngineError, msg, cause)
}

func DecodeError(msg string, cause error) *NDCError {
	return NewNDCError(CategoryDecodeError, msg, cause)
}

func ConcurrentConfigChange(attempts int) *NDCError {
	return NewNDCErrorDetails(CategoryConcurrentConfigChange,
		"configuration changed concurrently", nil,
		map[string]any{"attempts": attempts})
}

func ConfigParse(path string, line, col int, cause error) *NDCError {
	return NewNDCErrorDetails(CategoryConfigParse,
		fmt.Sprintf("failed to parse configuration at %s", path), cause,
		map[string]any{"path": path, "line": line, "column": col})
}

func ConfigWrite(path string, cause error) *NDCError {
	return NewNDCErrorDetails(CategoryConfigWrite,
		fmt.Sprintf("failed to write configuration at %s", path), cause,
		map[string]any{"path": path})
}

func DirectoryNotEmpty(dir string) *NDCError {
	return NewNDCErrorDetails(CategoryDirectoryNotEmpty,
		fmt.Sprintf("directory %q already contains a configuration file", dir), nil,
		map[string]any{"dir": dir})
}
