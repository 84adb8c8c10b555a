package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinicvoice/config"
	"clinicvoice/cron"
	"clinicvoice/database"
	patientRepoPkg "clinicvoice/database/repository/patient"
	practitionerRepoPkg "clinicvoice/database/repository/practitioner"
	"clinicvoice/handlers"
	"clinicvoice/middleware"
	"clinicvoice/routes"
	"clinicvoice/services/calendar"
	"clinicvoice/services/directory"
	"clinicvoice/services/intelligence"
	"clinicvoice/services/orchestrator"
	"clinicvoice/services/reconcile"
	"clinicvoice/services/scheduling"
	"clinicvoice/services/tasks"
	"clinicvoice/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitSessionCache()
	utils.InitHoldCache()

	ctx := context.Background()
	googleCalendar, err := calendar.NewGoogleCalendar(ctx, config.AppConfig.GoogleServiceAccountFile)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize calendar client: %v", err)
	}
	// Every calendar call carries a deadline so a stalled backend fails fast.
	calendarClient := calendar.WithTimeout(googleCalendar, config.ExternalCallTimeout())

	geminiClient, err := intelligence.NewGeminiClient(ctx, config.AppConfig.GeminiAPIKey)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize gemini client: %v", err)
	}

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	practRepo := practitionerRepoPkg.NewMongoPractitionerRepo()
	patRepo := patientRepoPkg.NewMongoPatientRepo()

	// services.
	clinicLoc := config.ClinicLocation()
	directoryService := directory.NewDirectoryService(practRepo, calendarClient)

	availability := &scheduling.DefaultAvailabilityResolver{
		Calendar: calendarClient,
		Hours: scheduling.ClinicHours{
			OpenHour:    config.AppConfig.ClinicOpenHour,
			CloseHour:   config.AppConfig.ClinicCloseHour,
			SlotMinutes: config.AppConfig.SlotMinutes,
			Location:    clinicLoc,
		},
		Retries: config.AppConfig.AvailRetries,
		Backoff: time.Duration(config.AppConfig.AvailBackoffMS) * time.Millisecond,
	}

	reservationManager := &scheduling.DefaultReservationManager{
		Calendar:     calendarClient,
		Availability: availability,
		HoldClient:   utils.GetHoldCacheClient(),
		HoldTTL:      config.HoldTTL(),
	}

	reconcileService := reconcile.NewReconcileService(patRepo)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer asynqClient.Close()
	reminderClient := tasks.NewClient(asynqClient)

	sessionStore := orchestrator.NewRedisSessionStore(utils.GetSessionCacheClient(), config.SessionTTL())
	sessionService := &orchestrator.DefaultSessionService{
		Directory:    directoryService,
		Reservations: reservationManager,
		Reconciler:   reconcileService,
		Sessions:     sessionStore,
		Reminders:    reminderClient,
		Calendar:     calendarClient,
		Location:     clinicLoc,
	}

	extractor := intelligence.NewIntentExtractor(geminiClient)

	// handlers.
	callHandler := handlers.NewCallHandler(sessionService, extractor, config.SessionTTL())
	practitionerHandler := handlers.NewPractitionerHandler(practRepo, directoryService)
	appointmentHandler := handlers.NewAppointmentHandler(directoryService, calendarClient, reservationManager, clinicLoc)

	// Assemble the handler bundle.
	handlerBundle := &handlers.HandlerBundle{
		StartSessionHandler: callHandler.StartSession,
		IntentHandler:       callHandler.HandleIntent,
		UtteranceHandler:    callHandler.HandleUtterance,
		EndSessionHandler:   callHandler.EndSession,

		STTHandler: handlers.STTHandler,

		CreatePractitionerHandler: practitionerHandler.CreatePractitioner,
		UpdatePractitionerHandler: practitionerHandler.UpdatePractitioner,
		DeletePractitionerHandler: practitionerHandler.DeletePractitioner,
		GetPractitionerHandler:    practitionerHandler.GetPractitioner,
		ListPractitionersHandler:  practitionerHandler.ListPractitioners,
		RefreshDirectoryHandler:   practitionerHandler.RefreshDirectory,

		ListAppointmentsHandler:  appointmentHandler.ListAppointments,
		CancelAppointmentHandler: appointmentHandler.CancelAppointment,
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Background worker: reminders, hold sweeping, roster refresh.
	cron.InitWorker(directoryService, calendarClient)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
