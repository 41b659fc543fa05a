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

package resolver

import (
	"fmt"
	"strings"
)

// docField is one recognised field of a /@ ... @/ doc comment.
type docField struct {
	name  string
	value string
}

// parseDocComment converts the body of a /@ ... @/ comment into a single
// markdown string. Recognised fields are Name, Summary, Module, CallOn,
// SPMP, MandatoryArg, OptionalArg and Example; arguments may be written
// <arg>, [arg] or bare, separated from their description by a colon or
// whitespace.
func parseDocComment(raw string) string {
	body := strings.TrimPrefix(raw, "/@")
	body = strings.TrimSuffix(body, "@/")

	fields := []docField{}
	current := -1
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "\r"))
		name, value, ok := splitDocField(line)
		if ok {
			fields = append(fields, docField{name, value})
			current = len(fields) - 1
			continue
		}
		if current >= 0 && line != "" {
			// Continuation of the previous field.
			fields[current].value += "\n" + line
		}
	}

	summary := ""
	callOn := ""
	module := ""
	spmp := ""
	example := ""
	args := []string{}

	for _, f := range fields {
		switch f.name {
		case "summary":
			summary = f.value
		case "callon":
			callOn = f.value
		case "module":
			module = f.value
		case "spmp":
			spmp = f.value
		case "example":
			example = f.value
		case "mandatoryarg":
			if name, desc := splitDocArg(f.value); name != "" {
				args = append(args, fmt.Sprintf("- `%s` — %s", name, desc))
			}
		case "optionalarg":
			if name, desc := splitDocArg(f.value); name != "" {
				args = append(args, fmt.Sprintf("- `%s` *(optional)* — %s", name, desc))
			}
		}
	}

	out := &strings.Builder{}
	if summary != "" {
		out.WriteString(summary)
	}
	if callOn != "" {
		fmt.Fprintf(out, "\n\n**Called on:** `%s`", callOn)
	}
	if spmp != "" {
		fmt.Fprintf(out, "\n\n**Mode:** %s", spmp)
	}
	if module != "" {
		fmt.Fprintf(out, "\n\n**Module:** %s", module)
	}
	if len(args) > 0 {
		out.WriteString("\n\n**Arguments:**\n")
		out.WriteString(strings.Join(args, "\n"))
	}
	if example != "" {
		fmt.Fprintf(out, "\n\n**Example:**\n```gsc\n%s\n```", example)
	}
	return strings.TrimSpace(out.String())
}

var docFieldNames = map[string]bool{
	"name":         true,
	"summary":      true,
	"module":       true,
	"callon":       true,
	"spmp":         true,
	"mandatoryarg": true,
	"optionalarg":  true,
	"example":      true,
}

// splitDocField recognises a 'Field: value' line.
func splitDocField(line string) (name, value string, ok bool) {
	i := strings.Index(line, ":")
	if i < 0 {
		return "", "", false
	}
	name = strings.ToLower(strings.TrimSpace(line[:i]))
	if !docFieldNames[name] {
		return "", "", false
	}
	return name, strings.TrimSpace(line[i+1:]), true
}

// splitDocArg splits an argument spec into its name and description. The
// name may be written <name>, [name] or bare, followed by a colon or
// whitespace separator.
func splitDocArg(spec string) (name, desc string) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", ""
	}
	switch spec[0] {
	case '<':
		if end := strings.Index(spec, ">"); end > 0 {
			return strings.TrimSpace(spec[1:end]), trimDocSeparator(spec[end+1:])
		}
	case '[':
		if end := strings.Index(spec, "]"); end > 0 {
			return strings.TrimSpace(spec[1:end]), trimDocSeparator(spec[end+1:])
		}
	}
	// Bare name up to the first colon or whitespace.
	end := strings.IndexAny(spec, ": \t")
	if end < 0 {
		return spec, ""
	}
	return spec[:end], trimDocSeparator(spec[end:])
}

func trimDocSeparator(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), ":"))
}
