package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Unleash/unleash-client-go/v3"
	"github.com/julienschmidt/httprouter"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ONSdigital/ras-rm-enrolment/clients"
	"github.com/ONSdigital/ras-rm-enrolment/enrolment"
	"github.com/ONSdigital/ras-rm-enrolment/verification"
)

func hello(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Write([]byte(viper.GetString("service_name")))
}

func startServer(router *httprouter.Router, logger *zap.SugaredLogger, wg *sync.WaitGroup) *http.Server {
	srv := &http.Server{
		Addr:    ":" + viper.GetString("port"),
		Handler: router,
	}
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("Server stopped", "error", err)
		}
	}()
	return srv
}

func main() {
	setDefaults()
	viper.AutomaticEnv()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	err = unleash.Initialize(
		unleash.WithAppName(viper.GetString("service_name")),
		unleash.WithUrl(viper.GetString("unleash_path")),
		unleash.WithListener(BasicListener{logger: logger}))
	if err != nil {
		logger.Fatalw("Error initialising Unleash", "error", err)
	}

	db, err := sql.Open("postgres", viper.GetString("db_uri"))
	if err != nil {
		logger.Fatalw("Error opening database connection", "error", err)
	}
	defer db.Close()

	tokens := verification.New(viper.GetString("token_secret"), viper.GetDuration("token_lifetime"))
	svc := enrolment.NewService(db, clients.FromConfig(), tokens, logger)

	router := httprouter.New()
	addRoutes(router, &api{svc: svc, logger: logger})

	var wg sync.WaitGroup
	wg.Add(1)
	srv := startServer(router, logger, &wg)
	logger.Infow("Server started", "addr", srv.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorw("Error shutting down server", "error", err)
	}
	wg.Wait()
}
