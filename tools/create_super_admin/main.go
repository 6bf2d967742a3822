// create_super_admin seeds the first super admin so the admin panel can be
// used to register everyone else.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/config"
	"cleanstreet/backend/db"
	"cleanstreet/common"

	"github.com/apex/log"
)

var (
	name     = flag.String("name", "Super Admin", "Display name")
	email    = flag.String("email", os.Getenv("SUPER_ADMIN_EMAIL"), "Login email")
	password = flag.String("password", os.Getenv("SUPER_ADMIN_PASSWORD"), "Login password, at least 6 characters")
	force    = flag.Bool("force", false, "Create even if a super admin already exists")
)

func main() {
	flag.Parse()
	if *email == "" || len(*password) < 6 {
		log.Fatal("Both -email and a -password of at least 6 characters are required")
	}

	cfg := config.Load()
	conn, err := common.DBConnect(cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	if err := db.InitSchema(ctx, conn); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	_, supers, err := db.CountAdmins(ctx, conn)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if supers > 0 && !*force {
		log.Infof("%d super admin(s) already present, nothing to do", supers)
		return
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("%v", err)
	}
	admin, err := db.CreateAdmin(ctx, conn, *name, strings.ToLower(strings.TrimSpace(*email)), hash, db.AdminRoleSuper)
	if errors.Is(err, db.ErrEmailTaken) {
		log.Fatalf("An admin with email %s already exists", *email)
	}
	if err != nil {
		log.Fatalf("Failed to create super admin: %v", err)
	}
	log.WithFields(log.Fields{"id": admin.Id, "email": admin.Email}).Info("Super admin created")
}
