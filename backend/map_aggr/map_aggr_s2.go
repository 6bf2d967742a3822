// Package map_aggr clusters complaint pins on S2 cells so a zoomed-out map
// shows counts instead of thousands of markers.
package map_aggr

import (
	"sort"

	"cleanstreet/backend/server/api"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const (
	targetCells   = 16
	coarsestLevel = 2
	finestLevel   = 18
	// Clusters with at most this many complaints are returned as individual pins.
	maxExpanded = 10
	// Children this many times lighter than the heaviest sibling do not pull the pin.
	outlierRatio = 8
)

type cluster struct {
	count    int64
	open     int64
	children [4]bool
	pin      s2.Point
	members  []api.MapResult
}

// Aggregator collects pins and merges them bottom-up to the base level of
// the viewport.
type Aggregator struct {
	baseLevel int
	leaves    map[s2.CellID][]api.MapResult
}

func viewportRect(vp *api.ViewPort) s2.Rect {
	lo := s2.LatLngFromDegrees(vp.LatMin, vp.LonMin)
	hi := s2.LatLngFromDegrees(vp.LatMax, vp.LonMax)
	return s2.Rect{
		Lat: r1.Interval{Lo: lo.Lat.Radians(), Hi: hi.Lat.Radians()},
		Lng: s1.Interval{Lo: lo.Lng.Radians(), Hi: hi.Lng.Radians()},
	}
}

// BaseLevel picks the finest S2 level at which about targetCells cells cover vp.
func BaseLevel(vp *api.ViewPort) int {
	rect := viewportRect(vp)
	area := rect.Area()
	center := s2.CellIDFromLatLng(rect.Center())
	for lv := finestLevel; lv >= coarsestLevel; lv-- {
		if area/s2.CellFromCellID(center.Parent(lv)).ApproxArea() < targetCells {
			return lv
		}
	}
	return coarsestLevel
}

func New(vp *api.ViewPort) *Aggregator {
	return &Aggregator{
		baseLevel: BaseLevel(vp),
		leaves:    make(map[s2.CellID][]api.MapResult),
	}
}

func (a *Aggregator) Add(r api.MapResult) {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(r.Latitude, r.Longitude)).Parent(finestLevel)
	a.leaves[cell] = append(a.leaves[cell], r)
}

// Results returns individual pins for sparse cells and one weighted pin per
// dense cell, ordered by cell.
func (a *Aggregator) Results() []api.MapResult {
	clusters := make(map[s2.CellID]*cluster, len(a.leaves))
	for cell, pins := range a.leaves {
		c := &cluster{
			count:    int64(len(pins)),
			children: [4]bool{true, true, true, true},
			pin:      s2.PointFromLatLng(cell.LatLng()),
		}
		for _, p := range pins {
			c.open += p.Open
		}
		if len(pins) <= maxExpanded {
			c.members = pins
		}
		clusters[cell] = c
	}
	for lv := finestLevel - 1; lv >= a.baseLevel; lv-- {
		clusters = mergeUp(clusters, lv)
	}

	cells := make([]s2.CellID, 0, len(clusters))
	for cell := range clusters {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })

	out := make([]api.MapResult, 0, len(cells))
	for _, cell := range cells {
		c := clusters[cell]
		if c.count <= maxExpanded {
			out = append(out, c.members...)
			continue
		}
		ll := s2.LatLngFromPoint(c.pin)
		out = append(out, api.MapResult{
			Latitude:  ll.Lat.Degrees(),
			Longitude: ll.Lng.Degrees(),
			Count:     c.count,
			Open:      c.open,
		})
	}
	return out
}

// mergeUp folds the clusters of level+1 into their parents at level.
func mergeUp(children map[s2.CellID]*cluster, level int) map[s2.CellID]*cluster {
	parents := make(map[s2.CellID]*cluster)
	for cell, c := range children {
		p := cell.Parent(level)
		pc, ok := parents[p]
		if !ok {
			pc = &cluster{}
			parents[p] = pc
		}
		pc.count += c.count
		pc.open += c.open
		if pc.count <= maxExpanded {
			pc.members = append(pc.members, c.members...)
		} else {
			pc.members = nil
		}
		pc.children[cell.ChildPosition(level+1)] = true
	}
	for p, pc := range parents {
		kids := p.Children()
		var siblings []*cluster
		for i, present := range pc.children {
			if present {
				siblings = append(siblings, children[kids[i]])
			}
		}
		pc.pin = centroid(p, siblings)
	}
	return parents
}

// centroid weights sibling pins by their counts, ignoring light outliers.
func centroid(parent s2.CellID, siblings []*cluster) s2.Point {
	var heaviest int64
	for _, c := range siblings {
		if c.count > heaviest {
			heaviest = c.count
		}
	}
	var sum r3.Vector
	for _, c := range siblings {
		if heaviest/c.count >= outlierRatio {
			continue
		}
		sum = sum.Add(c.pin.Vector.Mul(float64(c.count)))
	}
	if sum.Norm() == 0 {
		return s2.PointFromLatLng(parent.LatLng())
	}
	return s2.Point{Vector: sum.Normalize()}
}
