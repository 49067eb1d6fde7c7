// Copyright 2026 The routecore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package policy

import (
	"fmt"
	"strings"
)

// FilterStage identifies which of a protocol's three filter banks a
// Code object targets.
type FilterStage uint8

const (
	// FilterImport runs on routes a protocol hands to the RIB.
	FilterImport FilterStage = iota

	// FilterSourceMatch runs on the export path, first pass: it
	// tags routes that match another protocol's from-blocks.
	FilterSourceMatch

	// FilterExport runs on the export path, second pass, keyed off
	// the tags attached by the source-match pass.
	FilterExport
)

func (s FilterStage) String() string {
	switch s {
	case FilterImport:
		return "import"
	case FilterSourceMatch:
		return "export-sourcematch"
	case FilterExport:
		return "export"
	}
	return fmt.Sprintf("filterstage(%d)", s)
}

// Target names the owner of one compiled Code: a protocol and the
// filter stage within it.
type Target struct {
	Protocol string
	Stage    FilterStage
}

func (t Target) String() string {
	return t.Protocol + "/" + t.Stage.String()
}

// Code is one compiled filter program. The instruction stream is
// ASCII, one operation per line, executable by the VM; Subroutines
// hold the streams of policies invoked through CALL.
type Code struct {
	Target Target

	// Instructions is the flat instruction stream.
	Instructions string

	// Subroutines maps policy name to the instruction stream run by
	// CALL.
	Subroutines map[string]string

	// ReferencedSets names the named sets the program pushes, so
	// configuration can recompile dependents when a set changes.
	ReferencedSets map[string]struct{}

	// Tags records the redistribution tags this code tests or
	// attaches, and for each whether it is a true redistribution
	// tag. A protocol-to-self export term's tag is entered false so
	// the RIB does not loop the route back to its origin.
	Tags map[uint32]bool

	program *program // parsed lazily, cached
}

// Append merges other into c: instruction streams concatenate,
// subroutine and set references union. Both must share a target.
func (c *Code) Append(other *Code) error {
	if c.Target != other.Target {
		return fmt.Errorf("cannot merge code for %v into %v", other.Target, c.Target)
	}
	if other.Instructions != "" {
		if c.Instructions != "" && !strings.HasSuffix(c.Instructions, "\n") {
			c.Instructions += "\n"
		}
		c.Instructions += other.Instructions
	}
	for name, sub := range other.Subroutines {
		if c.Subroutines == nil {
			c.Subroutines = make(map[string]string)
		}
		c.Subroutines[name] = sub
	}
	for name := range other.ReferencedSets {
		if c.ReferencedSets == nil {
			c.ReferencedSets = make(map[string]struct{})
		}
		c.ReferencedSets[name] = struct{}{}
	}
	for tag, redist := range other.Tags {
		if c.Tags == nil {
			c.Tags = make(map[uint32]bool)
		}
		c.Tags[tag] = redist
	}
	c.program = nil
	return nil
}

// RedistTags returns the tags marked as true redistribution tags.
func (c *Code) RedistTags() U32Set {
	out := make(U32Set)
	for tag, redist := range c.Tags {
		if redist {
			out.Insert(tag)
		}
	}
	return out
}
