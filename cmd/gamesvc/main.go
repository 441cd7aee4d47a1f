package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/marcinlukanus/RideTheBusV2-sub000/configs"
	mongodb "github.com/marcinlukanus/RideTheBusV2-sub000/internal/db"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/broker"
	svcconfig "github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/config"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/db"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/handlers"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/service"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/store"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/identity"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/nats"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := svcconfig.Load()

	// schema first, then the pool
	if err := db.Migrate(cfg.DBUrl); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")
	pg := store.NewPoolAdapter(dbpool)

	mongo, disconnect, err := mongodb.ConnectToDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer disconnect(context.Background())
	log.Printf("mongo connection established successfully")

	cardStats := store.NewCardStatStore(mongo)
	if err := cardStats.EnsureIndexes(context.Background()); err != nil {
		log.Fatalf("Failed to create card stat indexes: %v", err)
	}

	// the seed cache is optional
	var cache service.RedisClient
	rdb, err := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warnf("redis unavailable, daily seeds are served from postgres: %v", err)
	} else {
		defer rdb.Close()
		cache = service.NewRedisAdapter(rdb)
		log.Printf("redis connection established successfully %s", cfg.RedisAddr)
	}

	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_"+instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn)

	roomService := service.NewRoomService(store.NewRoomStore(pg), b)
	dailyService := service.NewDailyService(store.NewDailyStore(pg), cache, cfg.DailyEpoch)
	scoreService := service.NewScoreService(store.NewScoreStore(pg))
	telemetryService := service.NewTelemetryService(cardStats)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.Origins)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	h := handlers.NewHandler(identity.New(cfg.JWTSecret), cfg.GamePort,
		roomService, dailyService, scoreService, telemetryService)
	h.SetRoutes(r)

	server := &http.Server{
		Addr:         ":" + cfg.GamePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
