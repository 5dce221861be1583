package ospf

import (
	"context"
	"fmt"
	"time"
)

type Status struct {
	Version  int         `json:"version" yaml:"version"`
	RouterID string      `json:"router_id" yaml:"router-id"`
	Area     string      `json:"area" yaml:"area"`
	AreaType string      `json:"area_type" yaml:"area-type"`
	Link     *LinkStatus `json:"link,omitempty" yaml:"link,omitempty"`
	LSAs     []LSAStatus `json:"lsas" yaml:"lsas"`
}

type LinkStatus struct {
	Interface string           `json:"interface" yaml:"interface"`
	Address   string           `json:"address" yaml:"address"`
	State     string           `json:"state" yaml:"state"`
	DR        string           `json:"dr" yaml:"dr"`
	BDR       string           `json:"bdr" yaml:"bdr"`
	Neighbors []NeighborStatus `json:"neighbors" yaml:"neighbors"`
}

type NeighborStatus struct {
	RouterID       string `json:"router_id" yaml:"router-id"`
	Address        string `json:"address" yaml:"address"`
	State          string `json:"state" yaml:"state"`
	Priority       int    `json:"priority" yaml:"priority"`
	DR             string `json:"dr" yaml:"dr"`
	BDR            string `json:"bdr" yaml:"bdr"`
	DeadIn         int    `json:"dead_in" yaml:"dead-in"`
	Requests       int    `json:"requests" yaml:"requests"`
	PendingUpdates int    `json:"pending_updates" yaml:"pending-updates"`
}

type LSAStatus struct {
	Type      string `json:"type" yaml:"type"`
	ID        string `json:"id" yaml:"id"`
	AdvRouter string `json:"adv_router" yaml:"adv-router"`
	Sequence  string `json:"sequence" yaml:"sequence"`
	Age       int    `json:"age" yaml:"age"`
	Checksum  string `json:"checksum" yaml:"checksum"`
	Length    int    `json:"length" yaml:"length"`
}

// Status returns a snapshot of the instance, taken on the loop goroutine.
func (i *Instance) Status(ctx context.Context) (*Status, error) {
	var s *Status
	if err := i.invoke(ctx, func() { s = i.status() }); err != nil {
		return nil, err
	}
	return s, nil
}

func (i *Instance) status() *Status {
	now := i.clock.Now()

	s := &Status{
		Version:  int(i.conf.Version),
		RouterID: i.conf.RouterID.String(),
		Area:     i.conf.AreaID.String(),
		AreaType: i.conf.AreaType.String(),
		LSAs:     []LSAStatus{},
	}

	if link := i.link; link != nil {
		ls := &LinkStatus{
			Interface: link.iface.Name,
			Address:   link.addr.String(),
			State:     link.state.String(),
			DR:        i.identString(link.dr),
			BDR:       i.identString(link.bdr),
			Neighbors: []NeighborStatus{},
		}

		dead := time.Duration(i.conf.DeadInterval) * time.Second
		for _, n := range link.neighbors {
			ls.Neighbors = append(ls.Neighbors, NeighborStatus{
				RouterID:       n.routerID.String(),
				Address:        n.addr.String(),
				State:          n.state.String(),
				Priority:       int(n.priority),
				DR:             i.identString(n.designated),
				BDR:            i.identString(n.backup),
				DeadIn:         int((dead - now.Sub(n.lastSeen)) / time.Second),
				Requests:       n.requests.len(),
				PendingUpdates: len(n.pendingUpdates),
			})
		}

		s.Link = ls
	}

	for _, h := range i.lsdb.headers(now) {
		s.LSAs = append(s.LSAs, LSAStatus{
			Type:      h.lsType.String(),
			ID:        i.identString(h.id),
			AdvRouter: h.advRouter.String(),
			Sequence:  fmt.Sprintf("0x%08x", uint32(h.seq)),
			Age:       int(h.age),
			Checksum:  fmt.Sprintf("0x%04x", h.checksum),
			Length:    int(h.length),
		})
	}

	return s
}
