package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"cleanstreet/backend/db"
	"cleanstreet/backend/lifecycle"
	"cleanstreet/backend/map_aggr"
	"cleanstreet/backend/server/api"
	"cleanstreet/backend/storage"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	geojson "github.com/paulmach/go.geojson"
)

const (
	defaultNearbyRadius = 5000.0
	maxNearbyResults    = 100
)

func (s *Server) CreateComplaint(c *gin.Context) {
	ident := caller(c)
	ctx := c.Request.Context()

	form, err := readComplaintForm(c)
	if err != nil {
		badJSON(c, "createComplaint", err)
		return
	}
	if msg := form.validate(); msg != "" {
		fail(c, http.StatusBadRequest, msg)
		return
	}
	priority, err := lifecycle.ParsePriority(form.Priority)
	if err != nil {
		failWith(c, "createComplaint", err)
		return
	}

	photos, err := s.readPhotos(c)
	if errors.Is(err, errBadUpload) {
		fail(c, http.StatusBadRequest, uploadMessage(err))
		return
	}
	if err != nil {
		failWith(c, "createComplaint", err)
		return
	}
	saved, err := s.savePhotos(ctx, photos)
	if err != nil {
		failWith(c, "createComplaint", err)
		return
	}

	complaint, err := db.CreateComplaint(ctx, s.db, &db.NewComplaint{
		UserId:      ident.Id,
		Title:       form.Title,
		Description: form.Description,
		Address:     form.Address,
		Priority:    priority,
		Location:    parseLocation(form.LocationCoords),
		Photos:      photoRefs(saved),
	})
	if err != nil {
		s.discardPhotos(ctx, saved)
		failWith(c, "createComplaint", err)
		return
	}
	log.WithFields(log.Fields{"complaint": complaint.Id, "user": ident.Id, "photos": len(saved)}).Info("Complaint created")

	s.tagPhotos(ctx, saved, complaint, form.Title)
	s.cache.Invalidate(ctx)
	respond(c, http.StatusCreated, "Complaint created successfully", gin.H{"complaint": complaint})
}

// complaintFilter reads the status and priority query filters.
func complaintFilter(c *gin.Context) (api.ComplaintFilter, error) {
	var f api.ComplaintFilter
	if v := c.Query("status"); v != "" {
		st, err := lifecycle.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = string(st)
	}
	if v := c.Query("priority"); v != "" {
		p, err := lifecycle.ParsePriority(v)
		if err != nil {
			return f, err
		}
		f.Priority = string(p)
	}
	return f, nil
}

func (s *Server) listComplaints(c *gin.Context, op string, f api.ComplaintFilter) {
	complaints, err := db.ListComplaints(c.Request.Context(), s.db, f)
	if err != nil {
		failWith(c, op, err)
		return
	}
	ok(c, gin.H{"count": len(complaints), "complaints": complaints})
}

func (s *Server) ListComplaints(c *gin.Context) {
	f, err := complaintFilter(c)
	if err != nil {
		failWith(c, "listComplaints", err)
		return
	}
	s.listComplaints(c, "listComplaints", f)
}

func (s *Server) UserComplaints(c *gin.Context) {
	s.listComplaints(c, "userComplaints", api.ComplaintFilter{UserId: caller(c).Id})
}

func (s *Server) GetComplaint(c *gin.Context) {
	complaint, err := db.GetComplaint(c.Request.Context(), s.db, c.Param("id"))
	if err != nil {
		failWith(c, "getComplaint", err)
		return
	}
	ok(c, gin.H{"complaint": complaint})
}

func overview(counts map[lifecycle.Status]int) gin.H {
	g := lifecycle.GroupStatuses(counts)
	return gin.H{
		"totalIssues": g.Total,
		"pending":     g.Pending,
		"inProgress":  g.InProgress,
		"resolved":    g.Resolved,
	}
}

// ComplaintOverview summarises the caller's own complaints.
func (s *Server) ComplaintOverview(c *gin.Context) {
	counts, err := db.CountComplaintsByStatus(c.Request.Context(), s.db, api.ComplaintFilter{UserId: caller(c).Id})
	if err != nil {
		failWith(c, "complaintOverview", err)
		return
	}
	ok(c, gin.H{"stats": overview(counts)})
}

// ComplaintTotals summarises every complaint in the system.
func (s *Server) ComplaintTotals(c *gin.Context) {
	ctx := c.Request.Context()
	var counts map[lifecycle.Status]int
	if !s.cache.Get(ctx, "status:all", &counts) {
		var err error
		if counts, err = db.CountComplaintsByStatus(ctx, s.db, api.ComplaintFilter{}); err != nil {
			failWith(c, "complaintTotals", err)
			return
		}
		s.cache.Set(ctx, "status:all", counts)
	}
	ok(c, gin.H{"stats": overview(counts)})
}

func (s *Server) NearbyComplaints(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		fail(c, http.StatusBadRequest, "Please provide valid lat and lng")
		return
	}
	radius := defaultNearbyRadius
	if v := c.Query("radius"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			fail(c, http.StatusBadRequest, "Radius must be a positive number of meters")
			return
		}
		radius = r
	}

	complaints, err := db.NearbyComplaints(c.Request.Context(), s.db, lng, lat, radius, maxNearbyResults)
	if err != nil {
		failWith(c, "nearbyComplaints", err)
		return
	}
	ok(c, gin.H{"count": len(complaints), "complaints": complaints})
}

// ComplaintMap returns every located complaint as a GeoJSON FeatureCollection.
func (s *Server) ComplaintMap(c *gin.Context) {
	pins, err := db.ComplaintPins(c.Request.Context(), s.db, nil)
	if err != nil {
		failWith(c, "complaintMap", err)
		return
	}
	c.JSON(http.StatusOK, featureCollection(pins))
}

func featureCollection(pins []api.MapResult) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range pins {
		f := geojson.NewPointFeature([]float64{p.Longitude, p.Latitude})
		if p.ComplaintId != "" {
			f.ID = p.ComplaintId
			f.SetProperty("status", string(p.Status))
		}
		f.SetProperty("count", p.Count)
		f.SetProperty("open", p.Open)
		fc.AddFeature(f)
	}
	return fc
}

// ComplaintClusters groups the complaints inside a viewport into S2 cells.
func (s *Server) ComplaintClusters(c *gin.Context) {
	var vp api.ViewPort
	if err := c.ShouldBindQuery(&vp); err != nil {
		fail(c, http.StatusBadRequest, "Please provide latMin, lonMin, latMax and lonMax")
		return
	}
	if vp.LatMin >= vp.LatMax || vp.LatMin < -90 || vp.LatMax > 90 || vp.LonMin < -180 || vp.LonMax > 180 {
		fail(c, http.StatusBadRequest, "Invalid viewport")
		return
	}

	pins, err := db.ComplaintPins(c.Request.Context(), s.db, &vp)
	if err != nil {
		failWith(c, "complaintClusters", err)
		return
	}
	a := map_aggr.New(&vp)
	for _, p := range pins {
		a.Add(p)
	}
	c.JSON(http.StatusOK, featureCollection(a.Results()))
}

// ServeUpload serves a locally stored photo by file name.
func (s *Server) ServeUpload(c *gin.Context) {
	local, isLocal := s.store.(*storage.LocalStorage)
	name := c.Param("filename")
	if !isLocal || name != filepath.Base(name) || name == "." || name == ".." {
		fail(c, http.StatusNotFound, "File not found")
		return
	}
	path := filepath.Join(local.Dir(), "complaints", name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		fail(c, http.StatusNotFound, "File not found")
		return
	}
	c.File(path)
}
