package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"cleanstreet/backend/db"
	"cleanstreet/backend/image"
	"cleanstreet/backend/server/api"
	"cleanstreet/backend/storage"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 1000
)

var errBadUpload = errors.New("invalid upload")

var photoExts = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// complaintForm is the submission body, read from multipart, urlencoded or JSON.
type complaintForm struct {
	Title          string          `form:"title" json:"title"`
	Description    string          `form:"description" json:"description"`
	Address        string          `form:"address" json:"address"`
	Priority       string          `form:"priority" json:"priority"`
	LocationCoords json.RawMessage `form:"-" json:"location_coords"`
}

func readComplaintForm(c *gin.Context) (*complaintForm, error) {
	f := &complaintForm{}
	if c.ContentType() == gin.MIMEJSON {
		if err := c.ShouldBindJSON(f); err != nil {
			return nil, err
		}
	} else {
		f.Title = c.PostForm("title")
		f.Description = c.PostForm("description")
		f.Address = c.PostForm("address")
		f.Priority = c.PostForm("priority")
		f.LocationCoords = json.RawMessage(c.PostForm("location_coords"))
	}
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Address = strings.TrimSpace(f.Address)
	return f, nil
}

func (f *complaintForm) validate() string {
	switch {
	case f.Title == "" || f.Description == "" || f.Address == "":
		return "Please provide title, description, and address"
	case utf8.RuneCountInString(f.Title) > maxTitleLen:
		return fmt.Sprintf("Title cannot exceed %d characters", maxTitleLen)
	case utf8.RuneCountInString(f.Description) > maxDescriptionLen:
		return fmt.Sprintf("Description cannot exceed %d characters", maxDescriptionLen)
	}
	return ""
}

// parseLocation accepts a GeoJSON point or a bare [lng, lat] pair, either
// inline or as a JSON-encoded string. Anything unusable yields [0,0].
func parseLocation(raw []byte) api.GeoPoint {
	unset := api.NewGeoPoint(0, 0)
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return unset
		}
		raw = bytes.TrimSpace([]byte(s))
	}
	if len(raw) == 0 || string(raw) == "null" {
		return unset
	}

	var coords []float64
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &coords); err != nil {
			log.Warnf("Failed to parse coordinates %q: %v", raw, err)
			return unset
		}
	} else {
		var p struct {
			Coordinates []float64 `json:"coordinates"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warnf("Failed to parse coordinates %q: %v", raw, err)
			return unset
		}
		coords = p.Coordinates
	}
	if len(coords) != 2 {
		return unset
	}
	lng, lat := coords[0], coords[1]
	if math.Abs(lng) > 180 || math.Abs(lat) > 90 {
		return unset
	}
	return api.NewGeoPoint(lng, lat)
}

func photoFiles(c *gin.Context) []*multipart.FileHeader {
	if !strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		return nil
	}
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	files := append([]*multipart.FileHeader{}, form.File["photos"]...)
	return append(files, form.File["photos[]"]...)
}

// readPhotos validates and loads the uploaded photos. Validation failures
// wrap errBadUpload.
func (s *Server) readPhotos(c *gin.Context) ([]*image.Photo, error) {
	files := photoFiles(c)
	if len(files) > s.cfg.MaxPhotos {
		return nil, fmt.Errorf("%w: at most %d photos are allowed", errBadUpload, s.cfg.MaxPhotos)
	}

	photos := make([]*image.Photo, 0, len(files))
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		contentType, known := photoExts[ext]
		mime := strings.ToLower(fh.Header.Get("Content-Type"))
		if !known || !allowedMime(mime) {
			return nil, fmt.Errorf("%w: only image files are allowed (jpeg, jpg, png, gif, webp)", errBadUpload)
		}
		if fh.Size > s.cfg.MaxPhotoBytes {
			return nil, fmt.Errorf("%w: photo %s exceeds the %d MB limit", errBadUpload, fh.Filename, s.cfg.MaxPhotoBytes>>20)
		}

		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxPhotoBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
		}
		if int64(len(data)) > s.cfg.MaxPhotoBytes {
			return nil, fmt.Errorf("%w: photo %s exceeds the %d MB limit", errBadUpload, fh.Filename, s.cfg.MaxPhotoBytes>>20)
		}

		photo, err := image.Normalize(data, contentType, ext)
		if err != nil {
			log.Warnf("Keeping original bytes of %s: %v", fh.Filename, err)
			photo = &image.Photo{Data: data, ContentType: contentType, Ext: ext}
		}
		photos = append(photos, photo)
	}
	return photos, nil
}

// uploadMessage turns an errBadUpload failure into the text shown to the client.
func uploadMessage(err error) string {
	return sentence(errors.New(strings.TrimPrefix(err.Error(), errBadUpload.Error()+": ")))
}

func allowedMime(mime string) bool {
	for _, t := range []string{"jpeg", "jpg", "png", "gif", "webp"} {
		if strings.Contains(mime, t) {
			return true
		}
	}
	return false
}

func (s *Server) savePhotos(ctx context.Context, photos []*image.Photo) ([]*storage.Object, error) {
	saved := make([]*storage.Object, 0, len(photos))
	for _, p := range photos {
		obj, err := s.store.Save(ctx, p.Ext, p.ContentType, p.Data)
		if err != nil {
			s.discardPhotos(ctx, saved)
			return nil, err
		}
		saved = append(saved, obj)
	}
	return saved, nil
}

func (s *Server) discardPhotos(ctx context.Context, objs []*storage.Object) {
	for _, o := range objs {
		s.deleteObject(ctx, o.Key)
	}
}

func (s *Server) deleteObject(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		log.Warnf("Failed to delete stored photo %s: %v", key, err)
	}
}

// tagPhotos links stored objects to their complaint. Failures are logged only.
func (s *Server) tagPhotos(ctx context.Context, objs []*storage.Object, complaint *api.Complaint, title string) {
	tags := map[string]string{
		"complaintId": complaint.Id,
		"userId":      complaint.UserId,
		"title":       title,
		"uploadTime":  time.Now().UTC().Format(time.RFC3339),
	}
	for _, o := range objs {
		if err := s.store.Tag(ctx, o.Key, tags); err != nil {
			log.Warnf("Failed to tag photo %s for complaint %s: %v", o.Key, complaint.Id, err)
		}
	}
}

func photoRefs(objs []*storage.Object) []db.Photo {
	refs := make([]db.Photo, len(objs))
	for i, o := range objs {
		refs[i] = db.Photo{URL: o.URL, Key: o.Key}
	}
	return refs
}
