package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/aqro/aqro-server/handlers"
	"github.com/aqro/aqro-server/middlewares"
	"github.com/aqro/aqro-server/models"
)

type Server struct {
	Router *mux.Router
	server *http.Server
}

const (
	readTimeout       = 5 * time.Minute
	readHeaderTimeout = 30 * time.Second
	writeTimeout      = 5 * time.Minute
)

func SetupRoutes() *Server {
	router := mux.NewRouter()
	authRoutes := router.PathPrefix("/api").Subrouter()
	authRoutes.Use(middlewares.AuthMiddleware)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"alive": true}`)
	}).Methods("GET")
	router.HandleFunc("/login", handlers.Login).Methods("POST")
	router.HandleFunc("/refresh", handlers.RefreshToken).Methods("POST")

	// same paths serve different audiences, so the user-type gate is
	// applied per route rather than per subrouter
	customer := middlewares.UserTypeMiddleware(models.UserTypeCustomer)
	staff := middlewares.UserTypeMiddleware(models.UserTypeStaff, models.UserTypeAdmin)
	admin := middlewares.UserTypeMiddleware(models.UserTypeAdmin)

	authRoutes.Handle("/containers/register", customer(http.HandlerFunc(handlers.RegisterContainer))).Methods("POST")
	authRoutes.Handle("/containers/stats", customer(http.HandlerFunc(handlers.GetCustomerStats))).Methods("GET")
	authRoutes.Handle("/containers/mine", customer(http.HandlerFunc(handlers.ListMyContainers))).Methods("GET")

	authRoutes.Handle("/containers/generate", staff(http.HandlerFunc(handlers.GenerateQRCode))).Methods("POST")
	authRoutes.Handle("/containers/restaurant/{id}/stats", staff(http.HandlerFunc(handlers.GetRestaurantStats))).Methods("GET")
	authRoutes.Handle("/containers/{id}/return", staff(http.HandlerFunc(handlers.ReturnContainer))).Methods("POST")
	authRoutes.Handle("/containers/{id}/rebate", staff(http.HandlerFunc(handlers.RebateContainer))).Methods("POST")
	authRoutes.Handle("/rebates/staff/{staffId}/totals", staff(http.HandlerFunc(handlers.GetStaffRebateTotals))).Methods("GET")
	authRoutes.Handle("/rebates/restaurant/{restaurantId}/totals", staff(http.HandlerFunc(handlers.GetRestaurantRebateTotals))).Methods("GET")
	authRoutes.Handle("/activities", staff(http.HandlerFunc(handlers.ListActivities))).Methods("GET")

	authRoutes.Handle("/containers", admin(http.HandlerFunc(handlers.CreateContainer))).Methods("POST")
	authRoutes.Handle("/containers/{id}", admin(http.HandlerFunc(handlers.UpdateContainer))).Methods("PUT")
	authRoutes.Handle("/rebates", admin(http.HandlerFunc(handlers.ManageRebateMappings))).Methods("POST")
	authRoutes.Handle("/container-types", admin(http.HandlerFunc(handlers.CreateContainerType))).Methods("POST")
	authRoutes.Handle("/container-types/{id}", admin(http.HandlerFunc(handlers.UpdateContainerType))).Methods("PUT")
	authRoutes.Handle("/container-types/{id}", admin(http.HandlerFunc(handlers.DeleteContainerType))).Methods("DELETE")

	// any authenticated user; ownership checks live in the engine
	authRoutes.HandleFunc("/containers/{id}/status", handlers.MarkContainerStatus).Methods("PATCH")
	authRoutes.HandleFunc("/rebates/{containerTypeId}", handlers.ListRebateMappings).Methods("GET")
	authRoutes.HandleFunc("/container-types", handlers.ListContainerTypes).Methods("GET")
	authRoutes.HandleFunc("/container-types/{id}", handlers.GetContainerType).Methods("GET")

	return &Server{
		Router: router,
	}
}

func (svr *Server) Run(port string) error {
	svr.server = &http.Server{
		Addr:              port,
		Handler:           svr.Router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	return svr.server.ListenAndServe()
}

func (svr *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return svr.server.Shutdown(ctx)
}
