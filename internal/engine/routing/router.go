// Package routing finds the cheapest path between two locations over the
// directed graph of active routes.
package routing

import (
	"container/heap"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// costEpsilon treats path costs this close as equal so tie-breaks apply.
const costEpsilon = 1e-9

// CalculateCost is the cost of sending one shipment over a route. It only
// reads the route's own attributes.
func CalculateCost(r domain.Route) float64 {
	variable := r.DistanceKm * r.Mode.RatePerKm() * (1 + r.FuelSurchargePct/100)
	return r.BaseCost + variable
}

// Path is an ordered chain of routes from one location to another.
type Path struct {
	From      string         `json:"from"`
	To        string         `json:"to"`
	Routes    []domain.Route `json:"routes"`
	TotalCost float64        `json:"total_cost"`
	// TransitHours is the sum of route transit times.
	TransitHours float64 `json:"transit_hours"`
	// HandlingFeePerUnit is the sum of per-unit handling fees along the path.
	HandlingFeePerUnit float64 `json:"handling_fee_per_unit"`
}

func (p Path) Hops() int { return len(p.Routes) }

func (p Path) RouteIDs() []string {
	ids := make([]string, len(p.Routes))
	for i, r := range p.Routes {
		ids[i] = r.ID
	}
	return ids
}

func (p Path) TransitTime() time.Duration {
	return time.Duration(p.TransitHours * float64(time.Hour))
}

// Router answers path queries over an immutable route graph.
type Router struct {
	locations map[string]struct{}
	adjacency map[string][]domain.Route // active routes only, sorted by id
}

// NewRouter builds the graph. Inactive routes are left out. Routes must be
// valid and reference known locations.
func NewRouter(locations []domain.Location, routes []domain.Route) (*Router, error) {
	r := &Router{
		locations: make(map[string]struct{}, len(locations)),
		adjacency: make(map[string][]domain.Route),
	}
	for _, l := range locations {
		r.locations[l.ID] = struct{}{}
	}

	for _, route := range routes {
		if err := route.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.locations[route.FromLocationID]; !ok {
			return nil, domain.NewNotFound("location", route.FromLocationID)
		}
		if _, ok := r.locations[route.ToLocationID]; !ok {
			return nil, domain.NewNotFound("location", route.ToLocationID)
		}
		if !route.Active {
			continue
		}
		r.adjacency[route.FromLocationID] = append(r.adjacency[route.FromLocationID], route)
	}

	for from := range r.adjacency {
		edges := r.adjacency[from]
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}
	return r, nil
}

// FindRoute returns the minimum-cost path from one location to another.
// Among equal-cost paths it prefers fewer hops, then the lexicographically
// smallest sequence of route ids. A location reaches itself with an empty path.
func (r *Router) FindRoute(from, to string) (Path, error) {
	if _, ok := r.locations[from]; !ok {
		return Path{}, domain.NewNotFound("location", from)
	}
	if _, ok := r.locations[to]; !ok {
		return Path{}, domain.NewNotFound("location", to)
	}
	if from == to {
		return Path{From: from, To: to, Routes: []domain.Route{}}, nil
	}

	best := map[string]*label{from: {node: from}}
	settled := make(map[string]bool)
	pq := &labelQueue{best[from]}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*label)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true
		if cur.node == to {
			return cur.path(from, to), nil
		}

		for _, edge := range r.adjacency[cur.node] {
			if settled[edge.ToLocationID] {
				continue
			}
			next := cur.extend(edge)
			if prev, ok := best[edge.ToLocationID]; ok && !next.less(prev) {
				continue
			}
			best[edge.ToLocationID] = next
			heap.Push(pq, next)
		}
	}

	return Path{}, &domain.UnreachableError{From: from, To: to}
}

// label is a tentative path to a node.
type label struct {
	node   string
	cost   float64
	routes []domain.Route
}

func (l *label) extend(edge domain.Route) *label {
	routes := make([]domain.Route, len(l.routes), len(l.routes)+1)
	copy(routes, l.routes)
	return &label{
		node:   edge.ToLocationID,
		cost:   l.cost + CalculateCost(edge),
		routes: append(routes, edge),
	}
}

// less orders labels by cost, then hop count, then route-id sequence.
func (l *label) less(o *label) bool {
	if math.Abs(l.cost-o.cost) > costEpsilon {
		return l.cost < o.cost
	}
	if len(l.routes) != len(o.routes) {
		return len(l.routes) < len(o.routes)
	}
	for i := range l.routes {
		if l.routes[i].ID != o.routes[i].ID {
			return l.routes[i].ID < o.routes[i].ID
		}
	}
	return false
}

func (l *label) path(from, to string) Path {
	p := Path{From: from, To: to, Routes: l.routes}
	for _, r := range l.routes {
		p.TotalCost += CalculateCost(r)
		p.TransitHours += r.TransitHours
		p.HandlingFeePerUnit += r.HandlingFeePerUnit
	}
	return p
}

type labelQueue []*label

func (q labelQueue) Len() int           { return len(q) }
func (q labelQueue) Less(i, j int) bool { return q[i].less(q[j]) }
func (q labelQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *labelQueue) Push(x any)        { *q = append(*q, x.(*label)) }

func (q *labelQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
