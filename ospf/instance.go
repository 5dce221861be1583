package ospf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/davidbalbert/miniospf/common"
	"github.com/davidbalbert/miniospf/metrics"
	"github.com/davidbalbert/miniospf/sync"
	"github.com/davidbalbert/miniospf/system"
	"github.com/davidbalbert/miniospf/transport"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// pollInterval is how often timers are checked when nothing else wakes
// the loop.
const pollInterval = 50 * time.Millisecond

var ErrStopped = errors.New("ospf: instance stopped")

type AreaType int

const (
	AreaStandard AreaType = iota
	AreaStub
	AreaNSSA
)

func (t AreaType) String() string {
	switch t {
	case AreaStandard:
		return "standard"
	case AreaStub:
		return "stub"
	case AreaNSSA:
		return "nssa"
	default:
		return "unknown"
	}
}

func ParseAreaType(s string) (AreaType, error) {
	switch strings.ToLower(s) {
	case "standard", "":
		return AreaStandard, nil
	case "stub":
		return AreaStub, nil
	case "nssa":
		return AreaNSSA, nil
	default:
		return 0, fmt.Errorf("unknown area type %q", s)
	}
}

type Config struct {
	Version       Version
	RouterID      common.RouterID
	AreaID        common.AreaID
	AreaType      AreaType
	Interface     string
	Passive       string
	HelloInterval uint16
	DeadInterval  uint32
	Cost          uint16
	InstanceID    uint8 // OSPFv3
}

// options returns the Options field we advertise. In OSPFv2 only the low
// byte is used.
func (c *Config) options() uint32 {
	var opts uint32
	switch c.AreaType {
	case AreaStandard:
		opts = 0x02 // E
	case AreaNSSA:
		opts = 0x08 // N/P
	}

	if c.Version == Version3 {
		opts |= 0x11 // V6, R
	}

	return opts
}

func (c *Config) routerFlags() uint8 {
	if c.Version == Version2 && c.AreaType == AreaStandard {
		return 0x02
	}
	return 0
}

// Conn sends and receives OSPF packets for one protocol version.
type Conn interface {
	ReadPacket() (*transport.Packet, error)
	WritePacket(p *transport.Packet) error
	JoinGroup(ifindex int, group netip.Addr) error
	LeaveGroup(ifindex int, group netip.Addr) error
	Close() error
}

// Watcher reports changes to the system's interfaces.
type Watcher interface {
	Events() <-chan system.Event
	InterfaceByName(name string) (system.Interface, bool)
}

type Option func(*Instance)

func WithClock(clock clockwork.Clock) Option {
	return func(i *Instance) {
		i.clock = clock
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(i *Instance) {
		i.log = log
	}
}

type Instance struct {
	conf    Config
	conn    Conn
	watcher Watcher
	clock   clockwork.Clock
	log     *logrus.Entry

	link    *Link
	passive *system.Interface
	lsdb    *lsdb

	invocations chan func()
	done        chan struct{}
	changes     *sync.Notifier
}

// NewInstance sets up the link on the configured interface and originates
// our LSAs. It fails if the interface or a usable address on it is
// missing.
func NewInstance(conf Config, conn Conn, watcher Watcher, opts ...Option) (*Instance, error) {
	if !conf.Version.Valid() {
		return nil, fmt.Errorf("ospf: unsupported version %d", conf.Version)
	}

	if conf.RouterID == 0 {
		return nil, fmt.Errorf("ospf: router ID must not be 0.0.0.0")
	}

	i := &Instance{
		conf:        conf,
		conn:        conn,
		watcher:     watcher,
		clock:       clockwork.NewRealClock(),
		log:         logrus.NewEntry(logrus.StandardLogger()),
		lsdb:        newLSDB(conf.Version),
		invocations: make(chan func()),
		done:        make(chan struct{}),
		changes:     sync.NewNotifier(),
	}

	for _, opt := range opts {
		opt(i)
	}

	i.log = i.log.WithField("version", conf.Version)

	iface, ok := watcher.InterfaceByName(conf.Interface)
	if !ok {
		return nil, fmt.Errorf("ospf: interface %s not found", conf.Interface)
	}

	if conf.Passive != "" {
		if p, ok := watcher.InterfaceByName(conf.Passive); ok {
			i.passive = &p
		} else {
			i.log.WithField("interface", conf.Passive).Warn("passive interface not found")
		}
	}

	if err := i.createLink(iface); err != nil {
		return nil, fmt.Errorf("ospf: %w", err)
	}

	i.updateRouterLSA()
	i.updateIntraAreaPrefixLSA()

	return i, nil
}

// Changes is notified whenever the result of Status might have changed.
func (i *Instance) Changes() *sync.Notifier {
	return i.changes
}

// Run drives the instance until ctx is canceled. On the way out our LSAs
// are flushed from the network.
func (i *Instance) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	packets := make(chan *transport.Packet, 64)

	g.Go(func() error {
		return i.readPackets(ctx, packets)
	})

	g.Go(func() error {
		defer i.conn.Close()
		return i.loop(ctx, packets)
	})

	return g.Wait()
}

func (i *Instance) readPackets(ctx context.Context, packets chan<- *transport.Packet) error {
	for {
		p, err := i.conn.ReadPacket()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			} else if errors.Is(err, net.ErrClosed) {
				return err
			}

			i.log.WithError(err).Warn("read failed")
			continue
		}

		select {
		case packets <- p:
		case <-ctx.Done():
			return nil
		}
	}
}

func (i *Instance) loop(ctx context.Context, packets <-chan *transport.Packet) error {
	defer close(i.done)

	ticker := i.clock.NewTicker(pollInterval)
	defer ticker.Stop()

	events := i.watcher.Events()

	i.start()

	for {
		select {
		case <-ctx.Done():
			i.shutdown()
			return nil
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			i.handleEvent(e)
		case p := <-packets:
			i.handlePacket(p)
		case f := <-i.invocations:
			f()
			continue
		case <-ticker.Chan():
		}

		events = i.drainEvents(events)

		if ctx.Err() != nil {
			i.shutdown()
			return nil
		}

		i.drainPackets(packets)
		i.tick()
	}
}

func (i *Instance) drainEvents(events <-chan system.Event) <-chan system.Event {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return nil
			}
			i.handleEvent(e)
		default:
			return events
		}
	}
}

func (i *Instance) drainPackets(packets <-chan *transport.Packet) {
	for {
		select {
		case p := <-packets:
			i.handlePacket(p)
		default:
			return
		}
	}
}

func (i *Instance) start() {
	if i.link != nil && i.link.iface.IsUp() {
		i.linkUp()
	}
}

func (i *Instance) tick() {
	now := i.clock.Now()

	if link := i.link; link != nil {
		hello := time.Duration(i.conf.HelloInterval) * time.Second
		dead := time.Duration(i.conf.DeadInterval) * time.Second

		if link.state >= LinkWaiting && now.Sub(link.lastHello) >= hello {
			i.sendHello()
		}

		if link.state == LinkWaiting && now.Sub(link.waitingSince) >= dead {
			i.log.Debug("wait timer expired")
			i.election()
		}

		i.checkNeighbors(now)
	}

	i.refreshLSAs()

	if i.lsdb.needsFlooding() {
		i.sendUpdate()
	}

	i.updateNeighborGauge()
}

// shutdown flushes our LSAs by flooding them at MaxAge.
func (i *Instance) shutdown() {
	i.log.Info("shutting down")

	now := i.clock.Now()
	for _, l := range i.lsdb.lsas {
		i.lsdb.expire(l, now)
		l.needsFlooding = true
	}
	i.sendUpdate()

	if i.link != nil {
		group := i.conf.Version.AllSPFRouters()
		if err := i.conn.LeaveGroup(i.link.iface.Index, group); err != nil {
			i.log.WithError(err).Warn("failed to leave group")
		}
	}
}

// invoke runs f on the loop goroutine.
func (i *Instance) invoke(ctx context.Context, f func()) error {
	finished := make(chan struct{})

	select {
	case i.invocations <- func() { f(); close(finished) }:
	case <-i.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Instance) newPacket(t messageType) []byte {
	return fillHeader(make([]byte, 0, 128), i.conf.Version, t, i.conf.RouterID, i.conf.AreaID, i.conf.InstanceID)
}

func (i *Instance) send(t messageType, data []byte, dst netip.Addr) {
	p := &transport.Packet{
		Data:    data,
		Src:     i.link.addr,
		Dst:     dst,
		IfIndex: i.link.iface.Index,
	}

	if err := i.conn.WritePacket(p); err != nil {
		i.log.WithError(err).WithFields(logrus.Fields{"type": t, "dst": dst}).Warn("send failed")
		return
	}

	metrics.PacketsSent.WithLabelValues(t.String()).Inc()
}

func (i *Instance) drop(reason string) {
	metrics.PacketsDropped.WithLabelValues(reason).Inc()
}

// identString formats a DR or BDR field.
func (i *Instance) identString(ident uint32) string {
	return common.RouterID(ident).String()
}

func (i *Instance) handlePacket(p *transport.Packet) {
	link := i.link
	log := i.log.WithFields(logrus.Fields{"src": p.Src, "dst": p.Dst})

	switch {
	case link == nil || link.state == LinkDown:
		i.drop("no-link")
		return
	case p.IfIndex != link.iface.Index:
		i.drop("interface")
		return
	case i.conf.Version == Version2 && !p.Src.Is4():
		i.drop("source")
		return
	case link.iface.HasAddr(p.Src):
		i.drop("own")
		return
	case p.Dst == i.conf.Version.AllDRouters():
		i.drop("all-d-routers")
		return
	}

	hdr, body, err := validateHeader(i.conf.Version, p.Data)
	if err != nil {
		log.WithError(err).Debug("dropping malformed packet")
		i.drop("malformed")
		return
	}

	if hdr.areaID != i.conf.AreaID {
		log.WithField("area", hdr.areaID).Debug("dropping packet for another area")
		i.drop("area")
		return
	}

	if i.conf.Version == Version3 && hdr.instanceID != i.conf.InstanceID {
		i.drop("instance")
		return
	}

	if hdr.routerID == i.conf.RouterID {
		i.drop("own")
		return
	}

	metrics.PacketsReceived.WithLabelValues(hdr.messageType.String()).Inc()

	if hdr.messageType == typeHello {
		h, err := decodeHello(i.conf.Version, body)
		if err != nil {
			log.WithError(err).Debug("dropping malformed hello")
			i.drop("malformed")
			return
		}
		i.processHello(hdr, h, p.Src)
		return
	}

	n := link.locate(i.neighborIdent(hdr, p.Src))
	if n == nil {
		log.WithField("type", hdr.messageType).Debug("dropping packet from unknown neighbor")
		i.drop("unknown-neighbor")
		return
	}

	switch hdr.messageType {
	case typeDatabaseDescription:
		d, err := decodeDatabaseDescription(i.conf.Version, body)
		if err != nil {
			log.WithError(err).Debug("dropping malformed DD")
			i.drop("malformed")
			return
		}
		i.processDD(hdr, d, n)
	case typeLinkStateRequest:
		reqs, err := decodeLinkStateRequest(body)
		if err != nil {
			log.WithError(err).Debug("dropping malformed request")
			i.drop("malformed")
			return
		}
		i.processRequest(reqs, n)
	case typeLinkStateUpdate:
		u, err := decodeLinkStateUpdate(i.conf.Version, body)
		if err != nil {
			log.WithError(err).Debug("dropping malformed update")
			i.drop("malformed")
			return
		}
		i.processUpdate(u, n, p.Dst)
	case typeLinkStateAcknowledgement:
		acks, err := decodeLinkStateAcknowledgement(i.conf.Version, body)
		if err != nil {
			log.WithError(err).Debug("dropping malformed ack")
			i.drop("malformed")
			return
		}
		i.processAck(acks, n)
	default:
		log.WithField("type", hdr.messageType).Debug("dropping packet of unknown type")
		i.drop("type")
	}
}
