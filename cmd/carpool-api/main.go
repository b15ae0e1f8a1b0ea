// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"carpool/internal/config"
	httptransport "carpool/internal/http"
	"carpool/internal/infra"
	"carpool/internal/maps"
	"carpool/internal/modules/booking"
	"carpool/internal/modules/matching"
	"carpool/internal/modules/route"
	"carpool/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("CARPOOL_FIREBASE_PROJECT_ID is required")
	}
	firebaseApp, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, firebaseApp)
	if err != nil {
		log.Fatalf("firebase auth: %v", err)
	}
	messagingClient, err := infra.NewMessaging(ctx, firebaseApp)
	if err != nil {
		log.Fatalf("firebase messaging: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	directions, err := maps.NewRouteService(cfg.Maps.APIKey, cfg.Maps.Language, cfg.Maps.Region)
	if err != nil {
		log.Fatalf("maps: %v", err)
	}
	geocoder, err := maps.NewGeocodeService(cfg.Maps.APIKey, cfg.Maps.Language, redisClient, cfg.Maps.CacheTTL)
	if err != nil {
		log.Fatalf("maps: %v", err)
	}

	notifier := notify.NewSink(messagingClient, notify.NewStore(dbPool))

	routeStore := route.NewStore(dbPool)
	bookingStore := booking.NewStore(dbPool)

	bookingSvc := booking.NewService(bookingStore, routeStore, geocoder, notifier)
	routeSvc := route.NewService(routeStore, directions, geocoder, notifier, bookingSvc)
	matchingSvc := matching.NewService(routeStore, geocoder, cfg.Matching)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Routes:   routeSvc,
		Bookings: bookingSvc,
		Matching: matchingSvc,
		Verifier: verifier,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("carpool api listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
