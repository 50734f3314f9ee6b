package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

func defineRoutes(router *mux.Router, s *Server) {
	router.Use(s.recoverPanics, s.logRequests, s.withSession)

	router.HandleFunc("/ping", s.handlePing).Methods("GET")
	router.HandleFunc("/", s.handleIndex).Methods("GET", "POST")
	router.HandleFunc("/index", s.handleIndex).Methods("GET", "POST")
	router.HandleFunc("/logout", s.handleLogout).Methods("GET")
	router.HandleFunc("/uploads/{filename}", s.handleUploads).Methods("GET")

	router.HandleFunc("/stream/{username}", s.requireLogin(s.handleStream)).Methods("GET", "POST")
	router.HandleFunc("/comments/{username}/{postID:[0-9]+}", s.requireLogin(s.handleComments)).Methods("GET", "POST")
	router.HandleFunc("/friends/{username}", s.requireLogin(s.handleFriends)).Methods("GET", "POST")
	router.HandleFunc("/profile/{username}", s.requireLogin(s.handleProfile)).Methods("GET", "POST")

	router.NotFoundHandler = http.HandlerFunc(s.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})
}
