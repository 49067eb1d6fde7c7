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

// Package routecore is the eventing and scheduling substrate of the
// router control plane. It provides the single-threaded cooperative
// event loop, the timer list with priority-classed heaps, refcounted
// callback handles backed by a slot pool, and the shared usage pool
// for interned resources. Protocol machinery (BGP), the policy
// engine, the RIB redistribution pipeline and the interface mirror
// are built on these primitives in their own packages.
package routecore

// Version is the build version, overridden at link time.
var Version = "(devel)"
