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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `{
  "as": 65001,
  "router_id": "192.0.2.1",
  "hold_time": 90,
  "protocols": {"static": 1, "ospf": 110},
  "peers": [
    {"name": "upstream", "address": "198.51.100.7:179", "as": 65002}
  ],
  "sets": {
    "mynets": {"type": "ipv4netset", "members": ["10.0.0.0/8", "172.16.0.0/12"]}
  },
  "policies": {
    "export": {
      "bgp": "policy-statement ospf-to-bgp { term t1 { from { protocol: \"ospf\"; network4 <= set mynets; } to { protocol: \"bgp\"; } then { localpref = 200; accept; } } }"
    }
  }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routecore.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Equal(t, uint32(65001), cfg.AS)
	require.Len(t, cfg.Peers, 1)
	require.Equal(t, uint8(110), cfg.Protocols["ospf"])
}

func TestLoadConfigRejectsBadPolicy(t *testing.T) {
	bad := `{
  "as": 65001,
  "router_id": "192.0.2.1",
  "policies": {"import": {"static": "policy-statement broken {"}}
}`
	_, err := LoadConfig(writeConfig(t, bad))
	require.Error(t, err)
}

func TestLoadConfigRejectsMissingAS(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"router_id": "192.0.2.1"}`))
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"as": 1, "router_id": "192.0.2.1", "nope": true}`))
	require.Error(t, err)
}

func TestNewDaemonCompilesPolicies(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	require.NotNil(t, d.InterfaceMirror())
	require.Len(t, d.peers, 1)

	// the export compilation allocated a tag for the ospf source
	require.NotEmpty(t, d.policies.ProtocolTags("ospf"))
}
