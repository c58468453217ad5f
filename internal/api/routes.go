package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Ledger view + narrow group mutations
	api.HandleFunc("/ledger/groups", handler.GetLedgerGroups).Methods("GET")
	api.HandleFunc("/ledger/groups", handler.CreateGroup).Methods("POST")
	api.HandleFunc("/ledger/groups/{groupID}", handler.GetLedgerGroup).Methods("GET")
	api.HandleFunc("/ledger/groups/{groupID}", handler.DeleteGroup).Methods("DELETE")
	api.HandleFunc("/ledger/groups/{groupID}/label", handler.UpdateGroupLabel).Methods("PUT")
	api.HandleFunc("/ledger/groups/{groupID}/lots", handler.MoveLots).Methods("POST")

	// Chains view
	api.HandleFunc("/chains", handler.GetChains).Methods("GET")
	api.HandleFunc("/chains/{chainID}/positions", handler.GetChainPositions).Methods("GET")

	// Sync + reconciliation
	api.HandleFunc("/sync", handler.SyncTransactions).Methods("POST")
	api.HandleFunc("/reconciliation", handler.GetReconciliation).Methods("GET")
	api.HandleFunc("/positions/{account}", handler.ReplacePositions).Methods("PUT")

	// Credentials
	api.HandleFunc("/credentials/{provider}", handler.SaveCredential).Methods("PUT")

	return r
}
