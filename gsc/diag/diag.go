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

// Package diag defines the stable diagnostic codes reported by the analysis
// pipeline, partitioned by source: 1xxx preprocessor, 2xxx lexer/parser,
// 3xxx semantic, 8xxx IDE conventions, 9xxx internal failure sentinels.
package diag

import (
	"fmt"

	"github.com/gscode/gscls/gsc/token"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "?"
	}
}

// Code identifies a diagnostic.
type Code int

const (
	// Preprocessor: 1xxx.
	CircularDependency                Code = 1000
	MissingInsertFile                 Code = 1001
	FailedToReadInsertFile            Code = 1002
	InvalidInsertPath                 Code = 1003
	DuplicateMacroDefinition          Code = 1004
	DuplicateMacroParameter           Code = 1005
	ExpectedMacroIdentifier           Code = 1006
	TooManyMacroArguments             Code = 1007
	TooFewMacroArguments              Code = 1008
	MissingMacroParameterList         Code = 1009
	PreprocessorIfAnalysisUnsupported Code = 1010
	InactivePreprocessorBranch        Code = 1011
	UnterminatedPreprocessorDirective Code = 1012

	// Lexer and parser: 2xxx.
	UnexpectedCharacter                     Code = 2000
	UnterminatedString                      Code = 2001
	UnexpectedToken                         Code = 2002
	ExpectedToken                           Code = 2003
	UnexpectedUsing                         Code = 2004
	UnexpectedFunctionModifier              Code = 2005
	VarargNotLastParameter                  Code = 2006
	UnexpectedConstructorParameter          Code = 2007
	SquareBracketInitialisationNotSupported Code = 2008
	MultipleDefaultLabels                   Code = 2009
	DuplicateCaseLabel                      Code = 2010
	UnterminatedBlockComment                Code = 2011
	ExpectedExpression                      Code = 2012
	UnterminatedDevBlock                    Code = 2013

	// Semantic: 3xxx.
	MissingUsingFile           Code = 3000
	NotDefined                 Code = 3001
	UnknownNamespace           Code = 3002
	CannotAssignToConstant     Code = 3003
	InvalidAssignmentTarget    Code = 3004
	RedefinitionOfSymbol       Code = 3005
	TooManyArguments           Code = 3006
	TooFewArguments            Code = 3007
	TooManyArgumentsUnverified Code = 3008
	TooFewArgumentsUnverified  Code = 3009
	DoesNotContainMember       Code = 3010
	InvalidThreadCall          Code = 3011
	AssignOnThreadedFunction   Code = 3012
	OperatorNotSupportedOnTypes Code = 3013
	OperatorNotSupportedOn      Code = 3014
	DivisionByZero              Code = 3015
	IntegerTooLarge             Code = 3016
	IntegerTooSmall             Code = 3017
	CannotWaitNegativeDuration  Code = 3018
	BelowVmRefreshRate          Code = 3019
	FallthroughCase             Code = 3020
	UnreachableCodeDetected     Code = 3021
	ReservedSymbol              Code = 3022

	// IDE conventions: 8xxx.
	MissingNamespaceDirective Code = 8000
	UnusedPrivateFunction     Code = 8001

	// Internal failure sentinels: 9xxx.
	LexerFailure        Code = 9000
	PreprocessorFailure Code = 9001
	ParserFailure       Code = 9002
	SignatureFailure    Code = 9003
	CfgFailure          Code = 9004
	DataFlowFailure     Code = 9005
	FoldingFailure      Code = 9006
	InternalFailure     Code = 9007
)

type info struct {
	format      string
	severity    Severity
	source      string
	unnecessary bool
}

var table = map[Code]info{
	CircularDependency:                {"circular dependency: '%v' is already being processed", SeverityError, "preprocessor", false},
	MissingInsertFile:                 {"cannot find file '%v' to insert", SeverityError, "preprocessor", false},
	FailedToReadInsertFile:            {"failed to read insert file '%v': %v", SeverityError, "preprocessor", false},
	InvalidInsertPath:                 {"insert path '%v' escapes the workspace root", SeverityError, "preprocessor", false},
	DuplicateMacroDefinition:          {"macro '%v' is already defined", SeverityError, "preprocessor", false},
	DuplicateMacroParameter:           {"duplicate macro parameter '%v'", SeverityError, "preprocessor", false},
	ExpectedMacroIdentifier:           {"expected an identifier after #define", SeverityError, "preprocessor", false},
	TooManyMacroArguments:             {"too many arguments to macro '%v': expected %v", SeverityError, "preprocessor", false},
	TooFewMacroArguments:              {"too few arguments to macro '%v': expected %v", SeverityError, "preprocessor", false},
	MissingMacroParameterList:         {"macro '%v' expects an argument list and was not expanded", SeverityHint, "preprocessor", false},
	PreprocessorIfAnalysisUnsupported: {"#if conditions are not evaluated; all branches are analyzed", SeverityHint, "preprocessor", false},
	InactivePreprocessorBranch:        {"this preprocessor branch may be inactive", SeverityHint, "preprocessor", true},
	UnterminatedPreprocessorDirective: {"unterminated '%v': missing #endif", SeverityError, "preprocessor", false},

	UnexpectedCharacter:                     {"unexpected character '%v'", SeverityError, "lexer", false},
	UnterminatedString:                      {"string literal is not terminated before the end of the line", SeverityError, "lexer", false},
	UnexpectedToken:                         {"unexpected token '%v'", SeverityError, "parser", false},
	ExpectedToken:                           {"expected '%v' but found '%v'", SeverityError, "parser", false},
	UnexpectedUsing:                         {"#using directives must appear before any definition", SeverityError, "parser", false},
	UnexpectedFunctionModifier:              {"modifier '%v' must appear before 'function'", SeverityError, "parser", false},
	VarargNotLastParameter:                  {"vararg '...' must be the last parameter", SeverityError, "parser", false},
	UnexpectedConstructorParameter:          {"constructors take no parameters", SeverityError, "parser", false},
	SquareBracketInitialisationNotSupported: {"array initialisation with '[...]' is not supported", SeverityError, "parser", false},
	MultipleDefaultLabels:                   {"switch already has a default label", SeverityError, "parser", false},
	DuplicateCaseLabel:                      {"duplicate case label '%v'", SeverityError, "parser", false},
	UnterminatedBlockComment:                {"block comment is not terminated", SeverityError, "lexer", false},
	ExpectedExpression:                      {"expected an expression", SeverityError, "parser", false},
	UnterminatedDevBlock:                    {"dev block is not terminated with '#/'", SeverityError, "parser", false},

	MissingUsingFile:            {"cannot find script '%v' referenced by #using", SeverityError, "signature", false},
	NotDefined:                  {"'%v' is not defined", SeverityError, "dataflow", false},
	UnknownNamespace:            {"unknown namespace '%v'", SeverityError, "dataflow", false},
	CannotAssignToConstant:      {"cannot assign to constant '%v'", SeverityError, "dataflow", false},
	InvalidAssignmentTarget:     {"invalid assignment target", SeverityError, "dataflow", false},
	RedefinitionOfSymbol:        {"redefinition of '%v'", SeverityError, "dataflow", false},
	TooManyArguments:            {"too many arguments to '%v': expected at most %v, got %v", SeverityError, "dataflow", false},
	TooFewArguments:             {"too few arguments to '%v': expected at least %v, got %v", SeverityError, "dataflow", false},
	TooManyArgumentsUnverified:  {"possibly too many arguments to builtin '%v': expected at most %v, got %v", SeverityWarning, "dataflow", false},
	TooFewArgumentsUnverified:   {"possibly too few arguments to builtin '%v': expected at least %v, got %v", SeverityWarning, "dataflow", false},
	DoesNotContainMember:        {"'%v' does not contain a member named '%v'", SeverityError, "dataflow", false},
	InvalidThreadCall:           {"'thread' must be followed by a function call", SeverityError, "dataflow", false},
	AssignOnThreadedFunction:    {"the result of a threaded call is undefined until the thread waits", SeverityWarning, "dataflow", false},
	OperatorNotSupportedOnTypes: {"operator '%v' is not supported on %v and %v", SeverityError, "dataflow", false},
	OperatorNotSupportedOn:      {"operator '%v' is not supported on %v", SeverityError, "dataflow", false},
	DivisionByZero:              {"division by zero", SeverityError, "dataflow", false},
	IntegerTooLarge:             {"integer literal does not fit in a signed 32 bit value", SeverityError, "dataflow", false},
	IntegerTooSmall:             {"integer literal does not fit in a signed 32 bit value", SeverityError, "dataflow", false},
	CannotWaitNegativeDuration:  {"cannot wait a non-positive duration", SeverityError, "dataflow", false},
	BelowVmRefreshRate:          {"wait duration is below the VM refresh period and will round up to %v", SeverityWarning, "dataflow", false},
	FallthroughCase:             {"case falls through to the next case", SeverityWarning, "dataflow", false},
	UnreachableCodeDetected:     {"unreachable code", SeverityWarning, "dataflow", true},
	ReservedSymbol:              {"'%v' is reserved and cannot be used as a variable", SeverityError, "dataflow", false},

	MissingNamespaceDirective: {"file declares functions without a #namespace directive", SeverityInformation, "ide", false},
	UnusedPrivateFunction:     {"private function '%v' is never used in this file", SeverityInformation, "ide", true},

	LexerFailure:        {"internal failure in the lexer: %v", SeverityError, "internal", false},
	PreprocessorFailure: {"internal failure in the preprocessor: %v", SeverityError, "internal", false},
	ParserFailure:       {"internal failure in the parser: %v", SeverityError, "internal", false},
	SignatureFailure:    {"internal failure in the signature analyzer: %v", SeverityError, "internal", false},
	CfgFailure:          {"internal failure building the control flow graph: %v", SeverityError, "internal", false},
	DataFlowFailure:     {"internal failure in the data flow analyzer: %v", SeverityError, "internal", false},
	FoldingFailure:      {"internal failure computing folding ranges: %v", SeverityError, "internal", false},
	InternalFailure:     {"internal failure: %v", SeverityError, "internal", false},
}

// Severity returns the fixed severity of the code.
func (c Code) Severity() Severity {
	return table[c].severity
}

// Source returns the pipeline stage that reports the code.
func (c Code) Source() string {
	return table[c].source
}

// Unnecessary reports whether the code carries the dead code decoration tag.
func (c Code) Unnecessary() bool {
	return table[c].unnecessary
}

// Diagnostic is a single analysis finding with a stable code.
type Diagnostic struct {
	Code        Code
	Range       token.Range
	Severity    Severity
	Message     string
	Source      string
	Unnecessary bool
}

// New builds a diagnostic at rng from the code's fixed format string.
func New(rng token.Range, code Code, args ...interface{}) Diagnostic {
	in, ok := table[code]
	if !ok {
		in = info{format: "unknown diagnostic", severity: SeverityError, source: "internal"}
	}
	msg := in.format
	if len(args) > 0 {
		msg = fmt.Sprintf(in.format, args...)
	}
	return Diagnostic{
		Code:        code,
		Range:       rng,
		Severity:    in.severity,
		Message:     msg,
		Source:      in.source,
		Unnecessary: in.unnecessary,
	}
}

// Diagnostics is a list of diagnostics.
type Diagnostics []Diagnostic

// Add appends a diagnostic built from the code's format string.
func (l *Diagnostics) Add(rng token.Range, code Code, args ...interface{}) {
	*l = append(*l, New(rng, code, args...))
}

// Merge appends every diagnostic of other.
func (l *Diagnostics) Merge(other Diagnostics) {
	*l = append(*l, other...)
}

// HasErrors returns true if any diagnostic has error severity.
func (l Diagnostics) HasErrors() bool {
	for _, d := range l {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
