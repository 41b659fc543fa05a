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

package token

// List is a doubly linked token sequence bracketed by Start and End
// sentinels. The sentinels are never removed, so splice operations always
// have a live neighbour on both sides.
type List struct {
	start, end *Token
	count      int
}

// NewList returns an empty list holding just the two sentinels.
func NewList() *List {
	l := &List{
		start: &Token{Kind: Start},
		end:   &Token{Kind: End},
	}
	l.start.next = l.end
	l.end.prev = l.start
	return l
}

// Start returns the start sentinel.
func (l *List) Start() *Token { return l.start }

// End returns the end sentinel.
func (l *List) End() *Token { return l.end }

// First returns the first real token, or the End sentinel when empty.
func (l *List) First() *Token { return l.start.next }

// Last returns the last real token, or the Start sentinel when empty.
func (l *List) Last() *Token { return l.end.prev }

// Len returns the number of real tokens in the list.
func (l *List) Len() int { return l.count }

// Empty returns true when the list holds no real tokens.
func (l *List) Empty() bool { return l.count == 0 }

// Append links t in front of the end sentinel.
func (l *List) Append(t *Token) {
	l.InsertBefore(l.end, t)
}

// InsertBefore links t immediately before at. at must belong to this list
// and must not be the start sentinel.
func (l *List) InsertBefore(at, t *Token) {
	t.prev = at.prev
	t.next = at
	at.prev.next = t
	at.prev = t
	l.count++
}

// InsertAfter links t immediately after at. at must belong to this list and
// must not be the end sentinel.
func (l *List) InsertAfter(at, t *Token) {
	t.next = at.next
	t.prev = at
	at.next.prev = t
	at.next = t
	l.count++
}

// Remove unlinks t from the list and returns the token that followed it.
// The sentinels cannot be removed.
func (l *List) Remove(t *Token) *Token {
	if t.Kind == Start || t.Kind == End {
		return t.next
	}
	next := t.next
	t.prev.next = t.next
	t.next.prev = t.prev
	t.prev, t.next = nil, nil
	l.count--
	return next
}

// RemoveSpan unlinks the inclusive span [first, last] and returns the token
// that followed last. The span must be a contiguous run of this list.
func (l *List) RemoveSpan(first, last *Token) *Token {
	next := last.next
	prev := first.prev
	prev.next = next
	next.prev = prev
	for t := first; t != nil && t != next; {
		n := t.next
		t.prev, t.next = nil, nil
		l.count--
		t = n
	}
	return next
}

// SpliceAfter links every real token of repl into this list immediately
// after at, draining repl. Returns the first spliced token, or at.next when
// repl was empty.
func (l *List) SpliceAfter(at *Token, repl *List) *Token {
	first := repl.First()
	if repl.Empty() {
		return at.next
	}
	last := repl.Last()

	first.prev = at
	last.next = at.next
	at.next.prev = last
	at.next = first

	l.count += repl.count

	repl.start.next = repl.end
	repl.end.prev = repl.start
	repl.count = 0
	return first
}

// Replace substitutes the inclusive span [first, last] with the real tokens
// of repl, draining repl. Returns the token following the replaced span.
func (l *List) Replace(first, last *Token, repl *List) *Token {
	anchor := first.prev
	next := l.RemoveSpan(first, last)
	l.SpliceAfter(anchor, repl)
	return next
}

// Tokens returns the real tokens in order. Intended for tests and small
// streams; production code walks the links.
func (l *List) Tokens() []*Token {
	out := make([]*Token, 0, l.count)
	for t := l.First(); t != l.end; t = t.next {
		out = append(out, t)
	}
	return out
}

// Text reconstitutes the source by concatenating every lexeme in order.
func (l *List) Text() string {
	n := 0
	for t := l.First(); t != l.end; t = t.next {
		n += len(t.Lexeme)
	}
	buf := make([]byte, 0, n)
	for t := l.First(); t != l.end; t = t.next {
		buf = append(buf, t.Lexeme...)
	}
	return string(buf)
}
