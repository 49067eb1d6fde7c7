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

package routecorecmd

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/routecore/routecore"
	"github.com/routecore/routecore/policy"
	"github.com/routecore/routecore/policy/policyfile"
)

// Config is the daemon configuration, expressed natively as JSON.
type Config struct {
	Logging routecore.Logging `json:"logging,omitempty"`

	// AS is the local autonomous system number.
	AS uint32 `json:"as"`

	// RouterID is the BGP identifier.
	RouterID string `json:"router_id"`

	// HoldTime is the OPEN hold time offer in seconds.
	HoldTime uint16 `json:"hold_time,omitempty"`

	// Peers lists the BGP sessions to run.
	Peers []PeerConfig `json:"peers,omitempty"`

	// Protocols lists the non-BGP route sources and their admin
	// distances.
	Protocols map[string]uint8 `json:"protocols,omitempty"`

	// Sets defines the named sets policies may reference.
	Sets map[string]SetConfig `json:"sets,omitempty"`

	// Policies holds policy source text keyed by the protocol it is
	// bound to.
	Policies PolicyConfig `json:"policies,omitempty"`
}

// PeerConfig describes one BGP peer.
type PeerConfig struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	AS      uint32 `json:"as"`

	// RouteReflectorClient marks sessions this speaker reflects
	// for.
	RouteReflectorClient bool `json:"route_reflector_client,omitempty"`
}

// SetConfig defines one named set.
type SetConfig struct {
	// Type is the element type: "u32set", "ipv4netset" or
	// "ipv6netset".
	Type string `json:"type"`

	// Members are the set's literal members.
	Members []string `json:"members"`
}

// PolicyConfig binds policy source text to protocols.
type PolicyConfig struct {
	Import map[string]string `json:"import,omitempty"`
	Export map[string]string `json:"export,omitempty"`
}

// LoadConfig reads and decodes a config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the pieces that do not need a running event loop.
func (cfg *Config) Validate() error {
	if cfg.AS == 0 {
		return fmt.Errorf("as is required")
	}
	if _, err := netip.ParseAddr(cfg.RouterID); err != nil {
		return fmt.Errorf("router_id: %v", err)
	}
	for _, p := range cfg.Peers {
		if p.AS == 0 {
			return fmt.Errorf("peer %q: as is required", p.Name)
		}
		if _, err := netip.ParseAddrPort(p.Address); err != nil {
			return fmt.Errorf("peer %q: address: %v", p.Name, err)
		}
	}
	for name, sc := range cfg.Sets {
		if _, err := cfg.buildSet(sc); err != nil {
			return fmt.Errorf("set %q: %v", name, err)
		}
	}
	for proto, src := range cfg.Policies.Import {
		if _, err := policyfile.Parse([]byte(src)); err != nil {
			return fmt.Errorf("import policy for %q: %v", proto, err)
		}
	}
	for proto, src := range cfg.Policies.Export {
		if _, err := policyfile.Parse([]byte(src)); err != nil {
			return fmt.Errorf("export policy for %q: %v", proto, err)
		}
	}
	return nil
}

func (cfg *Config) buildSet(sc SetConfig) (policy.Element, error) {
	t, ok := policy.ElemTypeByName(sc.Type)
	if !ok {
		return policy.Element{}, fmt.Errorf("unknown set type %q", sc.Type)
	}
	return policy.ParseElement(t, strings.Join(sc.Members, ","))
}
