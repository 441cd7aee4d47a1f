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
	svcconfig "github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/config"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/db"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/service"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/store"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/identity"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/nats"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/socketsvc/broker"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/socketsvc/handlers"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/socketsvc/routes"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := svcconfig.Load()

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

	var cache service.RedisClient
	rdb, err := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warnf("redis unavailable, daily seeds are served from postgres: %v", err)
	} else {
		defer rdb.Close()
		cache = service.NewRedisAdapter(rdb)
	}

	n, err := nats.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_"+instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// room feed and presence for every seat hosted here
	b := broker.NewBroker(n.Conn, instanceId, cfg.PresenceHeartbeat)

	s := ws.NewWs(ws.Deps{
		Rooms:         service.NewRoomService(store.NewRoomStore(pg), b),
		Network:       b,
		Daily:         service.NewDailyService(store.NewDailyStore(pg), cache, cfg.DailyEpoch),
		Scores:        service.NewScoreService(store.NewScoreStore(pg)),
		Telemetry:     service.NewTelemetryService(store.NewCardStatStore(mongo)),
		PresenceGrace: cfg.PresenceGrace,
	})

	r := chi.NewRouter()
	c := config.CORS(cfg.Origins)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	h := handlers.NewHandler(s, cfg.SocketPort, cfg.Origins)
	routes.SetRoutes(r, h, identity.New(cfg.JWTSecret))

	// no write timeout, sockets are long lived
	server := &http.Server{
		Addr:        ":" + cfg.SocketPort,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

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
	// hijacked websockets are not closed by Shutdown
	s.Close()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
