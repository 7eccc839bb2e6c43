package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"anonchat/pkg/auth"
	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/store"
	"anonchat/pkg/utils"
	"anonchat/pkg/validation"
)

// RegisterUsers registers the identity routes: registration, login and the
// username point lookup used for reply previews.
func RegisterUsers(r *mux.Router, svc *auth.Service) {
	r.HandleFunc("/users", func(w http.ResponseWriter, req *http.Request) {
		registerUser(w, req, svc)
	}).Methods(http.MethodPost)
	r.HandleFunc("/login", func(w http.ResponseWriter, req *http.Request) {
		login(w, req, svc)
	}).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/username", getUsername).Methods(http.MethodGet)
	r.HandleFunc("/me", me).Methods(http.MethodGet)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// registerUser handles POST /users. Username plus password is the whole
// identity; registration also logs the user in.
func registerUser(w http.ResponseWriter, r *http.Request, svc *auth.Service) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateUsername(c.Username); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidatePassword(c.Password); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := store.GetUserByName(c.Username); err == nil {
		utils.JSONError(w, http.StatusConflict, "username taken")
		return
	}
	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "hashing failed")
		return
	}
	u := models.User{
		ID:           uuid.NewString(),
		Username:     c.Username,
		PasswordHash: hash,
		CreatedTS:    time.Now().UTC().UnixNano(),
	}
	if err := store.SaveUser(u); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tok, err := svc.Issue(u.ID, u.Username)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	logger.Info("user_registered", "user", u.ID, "username", u.Username)
	_ = utils.JSONWrite(w, http.StatusCreated, session{Token: tok, User: u.Public()})
}

// login handles POST /login.
func login(w http.ResponseWriter, r *http.Request, svc *auth.Service) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := store.GetUserByName(c.Username)
	if err != nil || !auth.CheckPassword(u.PasswordHash, c.Password) {
		// same answer for unknown user and wrong password
		utils.JSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	tok, err := svc.Issue(u.ID, u.Username)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	logger.Info("user_login", "user", u.ID)
	_ = utils.JSONWrite(w, http.StatusOK, session{Token: tok, User: u.Public()})
}

// getUsername handles GET /users/{id}/username, the point lookup clients
// use when a reply references an author outside the fetched batch.
func getUsername(w http.ResponseWriter, r *http.Request) {
	if _, ok := viewer(w, r); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	name, err := store.GetUsernameByID(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "user not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"username": name})
}

// me handles GET /me, echoing the token's identity.
func me(w http.ResponseWriter, r *http.Request) {
	v, ok := viewer(w, r)
	if !ok {
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"id": v.ID, "username": v.Username})
}
