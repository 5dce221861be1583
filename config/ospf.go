package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/davidbalbert/miniospf/common"
	"github.com/davidbalbert/miniospf/ospf"
	"github.com/davidbalbert/miniospf/system"
)

// Validate checks every value against the ranges the protocol allows. It
// does not need the system's interfaces; router ID selection happens in
// OSPF.
func (c *Config) Validate() error {
	if c.Version != 2 && c.Version != 3 {
		return fmt.Errorf("config: unsupported OSPF version: %d", c.Version)
	}

	if c.Interface == "" {
		return fmt.Errorf("config: interface is required")
	}

	if c.Passive != "" && c.Passive == c.Interface {
		return fmt.Errorf("config: %s can't be both active and passive", c.Interface)
	}

	if _, err := common.ParseID(c.RouterID); err != nil {
		return fmt.Errorf("config: invalid router-id: %w", err)
	}

	area, err := common.ParseID(c.Area)
	if err != nil {
		return fmt.Errorf("config: invalid area: %w", err)
	}

	areaType, err := ospf.ParseAreaType(c.AreaType)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if common.AreaID(area) == common.BackboneArea && areaType != ospf.AreaStandard {
		return fmt.Errorf("config: the backbone area can't be a %s area", areaType)
	}

	if err := checkRange("hello-interval", c.HelloInterval, 1, math.MaxUint16); err != nil {
		return err
	}

	deadMax := math.MaxInt32
	if c.Version == 3 {
		deadMax = math.MaxUint16
	}
	if err := checkRange("dead-interval", c.DeadInterval, 1, deadMax); err != nil {
		return err
	}

	if c.HelloInterval >= c.DeadInterval {
		return fmt.Errorf("config: hello-interval (%d) must be less than dead-interval (%d)", c.HelloInterval, c.DeadInterval)
	}

	if err := checkRange("cost", c.Cost, 1, math.MaxUint16); err != nil {
		return err
	}

	if err := checkRange("instance-id", c.InstanceID, 0, math.MaxUint8); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}

	return nil
}

func checkRange(name string, v, lo, hi int) error {
	if v < lo {
		return fmt.Errorf("config: %s too small: %d", name, v)
	} else if v > hi {
		return fmt.Errorf("config: %s too big: %d", name, v)
	}
	return nil
}

// InterfaceLookup finds an interface by name. system.InterfaceMonitor
// satisfies it.
type InterfaceLookup interface {
	InterfaceByName(name string) (system.Interface, bool)
}

// OSPF converts a validated configuration into the engine's. A router ID
// of 0 is replaced by the lowest IPv4 address on the active or passive
// interface.
func (c *Config) OSPF(ifaces InterfaceLookup) (ospf.Config, error) {
	rid, _ := common.ParseID(c.RouterID)
	area, _ := common.ParseID(c.Area)
	areaType, _ := ospf.ParseAreaType(c.AreaType)

	conf := ospf.Config{
		Version:       ospf.Version(c.Version),
		RouterID:      common.RouterID(rid),
		AreaID:        common.AreaID(area),
		AreaType:      areaType,
		Interface:     c.Interface,
		Passive:       c.Passive,
		HelloInterval: uint16(c.HelloInterval),
		DeadInterval:  uint32(c.DeadInterval),
		Cost:          uint16(c.Cost),
		InstanceID:    uint8(c.InstanceID),
	}

	if conf.RouterID != 0 {
		return conf, nil
	}

	var candidates []system.Interface
	for _, name := range []string{c.Interface, c.Passive} {
		if name == "" {
			continue
		}
		if iface, ok := ifaces.InterfaceByName(name); ok {
			candidates = append(candidates, iface)
		}
	}

	conf.RouterID = SelectRouterID(candidates...)
	if conf.RouterID == 0 {
		return conf, fmt.Errorf("config: no router-id given and no IPv4 address to take one from")
	}

	return conf, nil
}

// SelectRouterID returns the numerically lowest IPv4 address on ifaces,
// or 0 if there isn't one.
func SelectRouterID(ifaces ...system.Interface) common.RouterID {
	var lowest uint32
	for _, iface := range ifaces {
		for _, p := range iface.IPv4() {
			v := common.AddrToUint32(p.Addr())
			if v != 0 && (lowest == 0 || v < lowest) {
				lowest = v
			}
		}
	}

	return common.RouterID(lowest)
}
