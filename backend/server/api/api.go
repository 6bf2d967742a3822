package api

import (
	"time"

	"cleanstreet/backend/lifecycle"
)

type AdminRecord struct {
	Id        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"` // admin or super_admin
	IsActive  bool       `json:"isActive"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type AssignArgs struct {
	VolunteerId string `json:"volunteerId"`
}

type CommentArgs struct {
	ComplaintId string `json:"complaint_id"`
	Content     string `json:"content"`
}

type Comment struct {
	Id          string    `json:"id"`
	ComplaintId string    `json:"complaint_id"`
	AuthorId    string    `json:"user_id"`
	AuthorRole  string    `json:"author_role"`
	AuthorName  string    `json:"author_name"`
	Content     string    `json:"content"`
	Likes       int       `json:"likes"`
	LikedBy     []string  `json:"likedBy"`
	CreatedAt   time.Time `json:"created_at"`
}

type Complaint struct {
	Id             string             `json:"id"`
	UserId         string             `json:"user_id"`
	AssignedTo     *string            `json:"assigned_to"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Address        string             `json:"address"`
	Photos         []string           `json:"photo"`
	LocationCoords GeoPoint           `json:"location_coords"`
	Upvotes        int                `json:"upvotes"`
	Downvotes      int                `json:"downvotes"`
	Status         lifecycle.Status   `json:"status"`
	Priority       lifecycle.Priority `json:"priority"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`

	// Populated on detail and admin views.
	Reporter *Person   `json:"reporter,omitempty"`
	Assignee *Person   `json:"assignee,omitempty"`
	Comments []Comment `json:"comments,omitempty"`
}

type ComplaintFilter struct {
	Status     string
	Priority   string
	UserId     string
	AssignedTo string
	Assigned   *bool
}

type DashboardStats struct {
	Complaints struct {
		Total      int                        `json:"total"`
		ByStatus   map[lifecycle.Status]int   `json:"byStatus"`
		ByPriority map[lifecycle.Priority]int `json:"byPriority"`
	} `json:"complaints"`
	Users struct {
		Total   int `json:"total"`
		Blocked int `json:"blocked"`
	} `json:"users"`
	Volunteers struct {
		Total    int `json:"total"`
		Pending  int `json:"pending"`
		Approved int `json:"approved"`
		Blocked  int `json:"blocked"`
	} `json:"volunteers"`
}

type EmailArgs struct {
	Email string `json:"email" binding:"required,email"`
}

// GeoPoint is a GeoJSON point; Coordinates is [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// IsSet reports whether the point carries a real location. [0,0] means unset.
func (p GeoPoint) IsSet() bool {
	return p.Coordinates[0] != 0 || p.Coordinates[1] != 0
}

func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

type LikeResponse struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}

type LoginArgs struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type MapResult struct {
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	Count       int64            `json:"count"`
	Open        int64            `json:"open"`
	ComplaintId string           `json:"complaint_id,omitempty"` // Ignored if Count > 1
	Status      lifecycle.Status `json:"status,omitempty"`       // Ignored if Count > 1
}

// Person is the public projection of any identity.
type Person struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type RegisterAdminArgs struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

type RegisterUserArgs struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	State    string `json:"state"`
	City     string `json:"city"`
}

type RegisterVolunteerArgs struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type ResetPasswordArgs struct {
	Password string `json:"password" binding:"required,min=6"`
}

type StatusArgs struct {
	Status string `json:"status"`
}

type User struct {
	Id              string    `json:"id"`
	Name            string    `json:"name"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	State           string    `json:"state,omitempty"`
	City            string    `json:"city,omitempty"`
	IsBlocked       bool      `json:"isBlocked"`
	ComplaintsCount int       `json:"complaintsCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

type UserStats struct {
	TotalUsers  int `json:"totalUsers"`
	ActiveUsers int `json:"activeUsers"`
	Volunteers  int `json:"volunteers"`
	Admins      int `json:"admins"`
}

type ViewPort struct {
	LatMin float64 `json:"latmin" form:"latMin"`
	LonMin float64 `json:"lonmin" form:"lonMin"`
	LatMax float64 `json:"latmax" form:"latMax"`
	LonMax float64 `json:"lonmax" form:"lonMax"`
}

type Volunteer struct {
	Id                 string                    `json:"id"`
	Name               string                    `json:"name"`
	Email              string                    `json:"email"`
	Phone              string                    `json:"phone"`
	Address            string                    `json:"address"`
	Status             lifecycle.VolunteerStatus `json:"status"`
	ApprovedBy         *string                   `json:"approvedBy"`
	ApprovedAt         *time.Time                `json:"approvedAt"`
	AssignedComplaints []string                  `json:"assignedComplaints"`
	CreatedAt          time.Time                 `json:"createdAt"`
}

type VolunteerStats struct {
	Total    int `json:"total"`
	Assigned int `json:"assigned"`
	Resolved int `json:"resolved"`
}

type Vote struct {
	Id          string             `json:"id"`
	UserId      string             `json:"user_id"`
	ComplaintId string             `json:"complaint_id"`
	VoteType    lifecycle.VoteType `json:"vote_type"`
	CreatedAt   time.Time          `json:"created_at"`
}

type VoteArgs struct {
	VoteType string `json:"vote_type"`
}

type VoteResult struct {
	Action    lifecycle.VoteAction `json:"-"`
	Vote      *Vote                `json:"vote"`
	Upvotes   int                  `json:"upvotes"`
	Downvotes int                  `json:"downvotes"`
}
