package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/config"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/store"
)

// openStore opens the backend selected by cfg.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.DBDriver == config.DriverPostgres {
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return store.NewSQLiteStore(cfg.DBPath)
}

// NewRouter wires every handler of s onto a mux router.
func NewRouter(s *Server) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	router.HandleFunc("/debts", s.listDebtsHandler).Methods("GET")
	router.HandleFunc("/debts", s.createDebtHandler).Methods("POST")
	router.HandleFunc("/debts/bulk-delete", s.bulkDeleteHandler).Methods("POST")
	router.HandleFunc("/debts/delete-preview", s.deletionPreviewHandler).Methods("POST")
	router.HandleFunc("/debts/{id}", s.getDebtHandler).Methods("GET")
	router.HandleFunc("/debts/{id}", s.editDebtHandler).Methods("PUT")
	router.HandleFunc("/debts/{id}", s.deleteDebtHandler).Methods("DELETE")
	router.HandleFunc("/debts/{id}/repayments", s.addRepaymentHandler).Methods("POST")
	router.HandleFunc("/repayments/{id}", s.deleteRepaymentHandler).Methods("DELETE")

	router.HandleFunc("/import", s.importHandler).Methods("POST")
	router.HandleFunc("/export/debts.csv", s.exportDebtsHandler).Methods("GET")
	router.HandleFunc("/export/repayments.csv", s.exportRepaymentsHandler).Methods("GET")

	router.HandleFunc("/summary", s.summaryHandler).Methods("GET")
	router.HandleFunc("/sections", s.sectionsHandler).Methods("GET")

	router.HandleFunc("/accounts", s.listAccountsHandler).Methods("GET")
	router.HandleFunc("/accounts", s.createAccountHandler).Methods("POST")
	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	server := NewServer(st)
	addr := cfg.Addr()
	slog.Info("server starting", "address", addr, "driver", cfg.DBDriver)
	if err := http.ListenAndServe(addr, NewRouter(server)); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
