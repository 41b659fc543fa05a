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

package ast

// Visit invokes visitor for all the children of the supplied node.
func Visit(node Node, visitor func(Node)) {
	switch n := node.(type) {
	case *Script:
		for _, d := range n.Dependencies {
			visitor(d)
		}
		for _, d := range n.Definitions {
			visitor(d)
		}

	case *FunctionDef:
		if n.Params != nil {
			visitor(n.Params)
		}
		if n.Body != nil {
			visitor(n.Body)
		}

	case *ParameterList:
		for _, p := range n.Params {
			visitor(p)
		}

	case *Parameter:
		if n.Default != nil {
			visitor(n.Default)
		}

	case *ClassDef:
		for _, m := range n.Body {
			visitor(m)
		}

	case *DevBlock:
		if n.Body != nil {
			visitor(n.Body)
		}

	case *Precache:
		for _, a := range n.Args {
			visitor(a)
		}

	case *UsingAnimTree:
		if n.Name != nil {
			visitor(n.Name)
		}

	case *Block:
		for _, s := range n.Statements {
			visitor(s)
		}

	case *ExprStmt:
		visitor(n.Expr)

	case *Assign:
		visitor(n.Target)
		visitor(n.Value)

	case *ConstDecl:
		if n.Value != nil {
			visitor(n.Value)
		}

	case *If:
		visitor(n.Cond)
		visitor(n.Then)
		if n.Else != nil {
			visitor(n.Else)
		}

	case *While:
		visitor(n.Cond)
		visitor(n.Body)

	case *DoWhile:
		visitor(n.Body)
		visitor(n.Cond)

	case *For:
		if n.Init != nil {
			visitor(n.Init)
		}
		if n.Cond != nil {
			visitor(n.Cond)
		}
		if n.Incr != nil {
			visitor(n.Incr)
		}
		visitor(n.Body)

	case *Foreach:
		visitor(n.Collection)
		visitor(n.Body)

	case *Switch:
		visitor(n.Value)
		for _, c := range n.Cases {
			visitor(c)
		}

	case *CaseClause:
		for _, l := range n.Labels {
			visitor(l)
		}
		for _, s := range n.Body {
			visitor(s)
		}

	case *Return:
		if n.Value != nil {
			visitor(n.Value)
		}

	case *Wait:
		visitor(n.Duration)

	case *WaitRealTime:
		visitor(n.Duration)

	case *Binary:
		visitor(n.LHS)
		visitor(n.RHS)

	case *Unary:
		visitor(n.Operand)

	case *Postfix:
		visitor(n.Operand)

	case *Call:
		if n.CalledOn != nil {
			visitor(n.CalledOn)
		}
		visitor(n.Callee)
		for _, a := range n.Args {
			visitor(a)
		}

	case *Member:
		visitor(n.Object)

	case *Index:
		visitor(n.Object)
		visitor(n.Index)

	case *Vector:
		visitor(n.X)
		visitor(n.Y)
		visitor(n.Z)

	case *Group:
		visitor(n.Expr)

	case *New:
		for _, a := range n.Args {
			visitor(a)
		}

	case *Dependency, *Namespace, *MemberDecl, *Break, *Continue,
		*WaittillFrameEnd, *NamespacedRef, *FuncPointer, *Identifier,
		*Literal, *EmptyArray, *AnimTree, *Invalid:
		// Leaves.
	}
}

// Walk calls visitor for node and recursively for every descendant.
func Walk(node Node, visitor func(Node)) {
	if node == nil {
		return
	}
	visitor(node)
	Visit(node, func(child Node) { Walk(child, visitor) })
}
