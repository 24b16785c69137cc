package handlers

import (
	"net/http"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/config"
)

// NewAccountsHandler returns GET /accounts. Credentials are never exposed.
func NewAccountsHandler(accounts []config.Account) http.HandlerFunc {
	type accountView struct {
		Name  string `json:"name"`
		Plate string `json:"plate"`
		Lot   int    `json:"lot"`
	}

	views := make([]accountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, accountView{
			Name:  account.Name,
			Plate: account.Plate,
			Lot:   account.Lot,
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": views})
	}
}
