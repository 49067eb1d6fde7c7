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
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/routecore/routecore"
	"github.com/routecore/routecore/bgp"
	"github.com/routecore/routecore/iftree"
	"github.com/routecore/routecore/policy"
	"github.com/routecore/routecore/policy/policyfile"
	"github.com/routecore/routecore/rib"
)

// bgpProtocolName is the RIB protocol handle for BGP-learned routes.
const bgpProtocolName = "bgp"

// bgpAdminDistance is the default admin distance for EBGP routes.
const bgpAdminDistance = 20

// Daemon wires the subsystems together on one event loop.
type Daemon struct {
	cfg      *Config
	loop     *routecore.EventLoop
	policies *policy.Manager
	table    *rib.RIB
	ifmirror *iftree.Updater
	attrs    *bgp.AttributeManager
	peers    []*peerSession
	logger   *zap.Logger
}

// NewDaemon builds a daemon from cfg. Policies compile here, so a
// broken config is caught before any connection is attempted.
func NewDaemon(cfg *Config) (*Daemon, error) {
	loop := routecore.NewEventLoop(nil)
	policies := policy.NewManager(policy.NewVarMap(), policy.NewSetMap(), loop.Pool())

	d := &Daemon{
		cfg:      cfg,
		loop:     loop,
		policies: policies,
		table:    rib.New(loop.Timers(), policies),
		ifmirror: iftree.NewUpdater(iftree.New()),
		attrs:    bgp.NewAttributeManager(),
		logger:   routecore.Log().Named("daemon"),
	}

	d.table.RegisterProtocol(bgpProtocolName, bgpAdminDistance)
	for name, dist := range cfg.Protocols {
		d.table.RegisterProtocol(name, dist)
	}

	for name, sc := range cfg.Sets {
		elem, err := cfg.buildSet(sc)
		if err != nil {
			return nil, fmt.Errorf("set %q: %v", name, err)
		}
		if err := policies.Sets().Define(name, elem); err != nil {
			return nil, fmt.Errorf("set %q: %v", name, err)
		}
	}
	for proto, src := range cfg.Policies.Import {
		stmts, err := policyfile.Parse([]byte(src))
		if err != nil {
			return nil, fmt.Errorf("import policy for %q: %v", proto, err)
		}
		if err := policies.ConfigureImport(proto, stmts); err != nil {
			return nil, err
		}
	}
	for proto, src := range cfg.Policies.Export {
		stmts, err := policyfile.Parse([]byte(src))
		if err != nil {
			return nil, fmt.Errorf("export policy for %q: %v", proto, err)
		}
		if err := policies.ConfigureExport(proto, stmts); err != nil {
			return nil, err
		}
	}

	for _, pc := range cfg.Peers {
		d.peers = append(d.peers, newPeerSession(d, pc))
	}
	return d, nil
}

// InterfaceMirror is the mount point for the forwarding-plane
// client: it applies interface state through the updater, and every
// subsystem reads the mirrored tree.
func (d *Daemon) InterfaceMirror() *iftree.Updater { return d.ifmirror }

// Run connects the peers and drives the event loop until ctx is
// done.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting",
		zap.Uint32("as", d.cfg.AS),
		zap.String("router_id", d.cfg.RouterID),
		zap.Int("peers", len(d.peers)))
	for _, ps := range d.peers {
		ps.connect()
	}
	return d.loop.Run(ctx)
}

// localOpen builds this speaker's OPEN offer.
func (d *Daemon) localOpen() *bgp.OpenMessage {
	as := bgp.AsNum(d.cfg.AS)
	hold := d.cfg.HoldTime
	if hold == 0 {
		hold = 90
	}
	return &bgp.OpenMessage{
		Version:  4,
		AS:       as.Legacy(),
		HoldTime: hold,
		BGPID:    netip.MustParseAddr(d.cfg.RouterID),
		Capabilities: []bgp.Capability{
			bgp.MultiprotocolCap{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIUnicast},
			bgp.MultiprotocolCap{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIMulticast},
			bgp.MultiprotocolCap{AFI: bgp.AFIIPv6, SAFI: bgp.SAFIUnicast},
			bgp.MultiprotocolCap{AFI: bgp.AFIIPv6, SAFI: bgp.SAFIMulticast},
			bgp.RouteRefreshCap{},
			bgp.FourByteASCap{AS: as},
		},
	}
}

// peerSession ties one configured peer's socket, handler and
// redistribution stream together.
type peerSession struct {
	daemon  *Daemon
	cfg     PeerConfig
	sock    *bgp.SocketClient
	handler *bgp.PeerHandler
	redists []*rib.Redistributor
	retry   routecore.Timer

	// water polls the socket backlog and relays the high/low-water
	// transitions to the subscribed redistributors, so a blocked
	// dump resumes once the write queue drains.
	water  routecore.Timer
	logger *zap.Logger
}

// waterPollInterval paces the backlog watermark polling.
var waterPollInterval = routecore.MakeTimeVal(0, 100_000)

const connectTimeout = 30 * time.Second
const reconnectWait = 15 // seconds

func newPeerSession(d *Daemon, pc PeerConfig) *peerSession {
	ps := &peerSession{
		daemon: d,
		cfg:    pc,
		logger: routecore.Log().Named("daemon.peer").With(zap.String("peer", pc.Name)),
	}
	ps.sock = bgp.NewSocketClient(d.loop,
		func(h bgp.Header, body []byte) { ps.handler.HandleMessage(h, body) },
		func(err error) { ps.connectionFailed(err) })
	ps.buildHandler()
	return ps
}

func (ps *peerSession) buildHandler() {
	d := ps.daemon
	ps.handler = bgp.NewPeerHandler(ps.cfg.Name,
		bgp.AsNum(d.cfg.AS), bgp.AsNum(ps.cfg.AS),
		d.localOpen(), ps.sock, &ribPlumbing{table: d.table}, d.attrs)
	ps.handler.RouteReflector = ps.cfg.RouteReflectorClient
	ps.handler.OnTeardown = func(err *bgp.MessageError) { ps.torndown(err) }
	ps.handler.OnRouteRefresh = func(plane bgp.Plane) { ps.replay(plane) }
}

func (ps *peerSession) connect() {
	ps.sock.Connect(ps.cfg.Address, connectTimeout, func(err error) {
		if err != nil {
			ps.connectionFailed(err)
			return
		}
		ps.logger.Info("connected", zap.String("address", ps.cfg.Address))
		ps.sock.SendMessage(bgp.EncodeMessage(ps.daemon.localOpen()), nil)
		ps.subscribe()
	})
}

// subscribe attaches this peer as a consumer of every non-BGP
// protocol's redistribution stream.
func (ps *peerSession) subscribe() {
	for name := range ps.daemon.cfg.Protocols {
		out := &peerRedistOutput{session: ps}
		redist, err := ps.daemon.table.Redistribute(name, bgpProtocolName, out)
		if err != nil {
			ps.logger.Error("subscribe failed", zap.String("protocol", name), zap.Error(err))
			continue
		}
		ps.redists = append(ps.redists, redist)
	}
	if len(ps.redists) > 0 && !ps.water.Scheduled() {
		ps.water.Clear()
		ps.water = ps.daemon.loop.Timers().NewPeriodic(waterPollInterval,
			ps.pollWater, routecore.PriorityBackground)
	}
}

// pollWater relays backlog transitions; it keeps running while any
// subscription is live.
func (ps *peerSession) pollWater() bool {
	if len(ps.redists) == 0 {
		return false
	}
	busy := ps.sock.OutputQueueBusy()
	drained := ps.sock.PendingWrites() == 0
	for _, r := range ps.redists {
		if busy {
			r.HighWater()
		} else if drained {
			r.LowWater()
		}
	}
	return true
}

func (ps *peerSession) replay(bgp.Plane) {
	// a refresh replays the RIB-out: resubscribe so the dump runs
	// again for this peer
	ps.unsubscribe()
	ps.subscribe()
}

func (ps *peerSession) unsubscribe() {
	for _, r := range ps.redists {
		r.Close()
	}
	ps.redists = nil
	ps.water.Unschedule()
	ps.water.Clear()
}

// connectionFailed handles a transport-level failure: tear the
// session down and schedule a reconnect.
func (ps *peerSession) connectionFailed(err error) {
	ps.logger.Warn("connection failed", zap.Error(err))
	ps.handler.Invalidate(&bgp.MessageError{
		Code: bgp.ErrcodeCease, Reason: err.Error(),
	})
}

// torndown runs after the handler has invalidated the session. The
// peer's contribution to the RIB retires via a generation bump —
// downstream consumers see synthetic deletions — and the peer's own
// subscriptions shut down.
func (ps *peerSession) torndown(err *bgp.MessageError) {
	if err != nil {
		ps.logger.Warn("session torn down", zap.Error(err))
	}
	for _, r := range ps.redists {
		r.OutputInvalid()
	}
	ps.redists = nil
	ps.water.Unschedule()
	ps.water.Clear()
	if _, genErr := ps.daemon.table.NewGeneration(bgpProtocolName); genErr != nil {
		ps.logger.Error("generation bump failed", zap.Error(genErr))
	}

	// rebuild and retry later
	ps.sock = bgp.NewSocketClient(ps.daemon.loop,
		func(h bgp.Header, body []byte) { ps.handler.HandleMessage(h, body) },
		func(e error) { ps.connectionFailed(e) })
	ps.buildHandler()
	if ps.retry.Scheduled() {
		return
	}
	ps.retry.Clear()
	ps.retry = ps.daemon.loop.Timers().NewOneoffAfter(
		routecore.MakeTimeVal(reconnectWait, 0),
		func() { ps.connect() },
		routecore.PriorityBackground)
}

// ribPlumbing feeds peer-learned routes into the RIB as protocol
// "bgp".
type ribPlumbing struct {
	table *rib.RIB
}

func (rp *ribPlumbing) AddRoute(plane bgp.Plane, r *bgp.SubnetRoute) {
	entry := &rib.RouteEntry{
		Net:     r.Net,
		NextHop: r.NextHop,
	}
	if err := rp.table.AddRoute(bgpProtocolName, entry); err != nil {
		routecore.Log().Named("daemon").Warn("route install failed",
			zap.Stringer("net", r.Net), zap.Error(err))
	}
}

func (rp *ribPlumbing) DeleteRoute(plane bgp.Plane, net netip.Prefix) {
	_ = rp.table.DeleteRoute(bgpProtocolName, net)
}

func (rp *ribPlumbing) Push(plane bgp.Plane) {
	// the RIB applies updates synchronously; nothing is buffered
}

// peerRedistOutput adapts a peer session to the redistribution
// output surface: RIB routes become outgoing UPDATE batches, and the
// socket's write queue provides the backpressure signal.
type peerRedistOutput struct {
	session *peerSession
	dumping bool
}

func (o *peerRedistOutput) AddRoute(r *rib.RouteEntry) error {
	ps := o.session
	plane := planeFor(r.Net)
	ps.handler.AddRoute(plane, &bgp.SubnetRoute{
		Net:     r.Net,
		Attrs:   o.exportAttrs(r),
		NextHop: r.NextHop,
	})
	if !o.dumping {
		ps.handler.PushPacket()
	}
	o.signalWater()
	return nil
}

func (o *peerRedistOutput) DeleteRoute(r *rib.RouteEntry) error {
	ps := o.session
	ps.handler.WithdrawRoute(planeFor(r.Net), r.Net)
	if !o.dumping {
		ps.handler.PushPacket()
	}
	o.signalWater()
	return nil
}

func (o *peerRedistOutput) StartingRouteDump() { o.dumping = true }

func (o *peerRedistOutput) FinishingRouteDump() {
	o.dumping = false
	o.session.handler.PushPacket()
}

func (o *peerRedistOutput) Backlog() int { return o.session.sock.PendingWrites() }

func (o *peerRedistOutput) HighWaterBacklog() bool { return o.session.sock.OutputQueueBusy() }

func (o *peerRedistOutput) LowWaterBacklog() bool { return o.session.sock.PendingWrites() == 0 }

func (o *peerRedistOutput) signalWater() {
	// the redistributor checks HighWaterBacklog itself as it emits,
	// and the session's water timer relays LowWater once the write
	// queue drains; nothing to do eagerly
}

// exportAttrs builds the path attributes for a locally originated
// announcement of r.
func (o *peerRedistOutput) exportAttrs(r *rib.RouteEntry) *bgp.PathAttrList {
	d := o.session.daemon
	path := &bgp.ASPath{}
	if !o.session.handler.IBGP() {
		path.Prepend(bgp.AsNum(d.cfg.AS))
	}
	attrs := []bgp.PathAttribute{
		bgp.OriginAttr{Origin: bgp.OriginIGP},
		bgp.ASPathAttr{Path: path},
	}
	if r.NextHop.Is4() {
		attrs = append(attrs, bgp.NextHopAttr{NextHop: r.NextHop})
	}
	if r.Metric != 0 {
		attrs = append(attrs, bgp.MEDAttr{MED: r.Metric})
	}
	return d.attrs.Intern(bgp.NewPathAttrList(attrs...))
}

// planeFor maps a prefix to its unicast plane.
func planeFor(p netip.Prefix) bgp.Plane {
	if p.Addr().Is4() {
		return bgp.Plane{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIUnicast}
	}
	return bgp.Plane{AFI: bgp.AFIIPv6, SAFI: bgp.SAFIUnicast}
}
