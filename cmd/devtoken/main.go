// Command devtoken mints a cashier token for local use against a dev server
// sharing the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/cashier/internal/auth"
	"github.com/kiwari-pos/cashier/internal/config"
	"github.com/kiwari-pos/cashier/internal/enum"
)

func main() {
	cfg := config.Load()

	userFlag := flag.String("user", "", "Cashier user ID (random when empty)")
	outletFlag := flag.String("outlet", "", "Outlet ID")
	role := flag.String("role", enum.UserRoleCashier, "Role carried by the token")
	ttl := flag.Duration("ttl", 12*time.Hour, "Token lifetime")
	flag.Parse()

	// Fall back to environment variables
	if *outletFlag == "" {
		*outletFlag = os.Getenv("DEV_OUTLET_ID")
	}
	if *outletFlag == "" {
		log.Fatal("outlet is required (-outlet or DEV_OUTLET_ID)")
	}

	outletID, err := uuid.Parse(*outletFlag)
	if err != nil {
		log.Fatalf("invalid outlet ID: %v", err)
	}
	userID := uuid.New()
	if *userFlag != "" {
		if userID, err = uuid.Parse(*userFlag); err != nil {
			log.Fatalf("invalid user ID: %v", err)
		}
	}

	if cfg.JWTSecret == config.DefaultJWTSecret {
		log.Println("WARNING: signing with the default JWT secret")
	}

	token, err := auth.GenerateToken(cfg.JWTSecret, userID, outletID, *role, *ttl)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
