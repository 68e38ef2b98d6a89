// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"strings"
)

const (
	DefaultSchema = "doc"
	pathSep       = "."
)

// ColumnIdent names a top level column or a field nested inside an
// object column. The path is kept joined so that two idents compare
// equal with == iff the root and the full path match. Column names
// must not contain '.'.
type ColumnIdent struct {
	name string
	path string
}

func NewColumnIdent(name string, path ...string) ColumnIdent {
	return ColumnIdent{
		name: name,
		path: strings.Join(path, pathSep),
	}
}

// ParseColumnIdent splits a dotted fqn like "payload.region".
func ParseColumnIdent(fqn string) ColumnIdent {
	parts := strings.Split(fqn, pathSep)
	return NewColumnIdent(parts[0], parts[1:]...)
}

func (ci ColumnIdent) Name() string {
	return ci.name
}

func (ci ColumnIdent) Path() []string {
	if ci.path == "" {
		return nil
	}
	return strings.Split(ci.path, pathSep)
}

// IsTopLevel reports whether the ident has no nested path.
func (ci ColumnIdent) IsTopLevel() bool {
	return ci.path == ""
}

func (ci ColumnIdent) IsEmpty() bool {
	return ci.name == ""
}

func (ci ColumnIdent) Root() ColumnIdent {
	return ColumnIdent{name: ci.name}
}

// Child returns the ident of a field nested under ci.
func (ci ColumnIdent) Child(field string) ColumnIdent {
	ret := ColumnIdent{name: ci.name, path: field}
	if ci.path != "" {
		ret.path = ci.path + pathSep + field
	}
	return ret
}

// IsChildOf reports whether ci is nested anywhere below parent.
func (ci ColumnIdent) IsChildOf(parent ColumnIdent) bool {
	if ci.name != parent.name || ci.path == parent.path {
		return false
	}
	if parent.path == "" {
		return ci.path != ""
	}
	return strings.HasPrefix(ci.path, parent.path+pathSep)
}

func (ci ColumnIdent) Fqn() string {
	if ci.path == "" {
		return ci.name
	}
	return ci.name + pathSep + ci.path
}

// SqlFqn renders the subscript notation, e.g. payload['region'].
func (ci ColumnIdent) SqlFqn() string {
	if ci.path == "" {
		return ci.name
	}
	sb := strings.Builder{}
	sb.WriteString(ci.name)
	for _, p := range ci.Path() {
		sb.WriteString("['")
		sb.WriteString(p)
		sb.WriteString("']")
	}
	return sb.String()
}

func (ci ColumnIdent) String() string {
	return ci.SqlFqn()
}

// Less orders idents by name then path.
func (ci ColumnIdent) Less(o ColumnIdent) bool {
	if ci.name != o.name {
		return ci.name < o.name
	}
	return ci.path < o.path
}

type TableIdent struct {
	Schema string
	Name   string
}

func NewTableIdent(schema, name string) TableIdent {
	if schema == "" {
		schema = DefaultSchema
	}
	return TableIdent{Schema: schema, Name: name}
}

func (ti TableIdent) Fqn() string {
	return ti.Schema + "." + ti.Name
}

func (ti TableIdent) String() string {
	return ti.Fqn()
}
