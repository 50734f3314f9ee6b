package main

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

func hashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func checkPasswordHash(password, hashedPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

func (s *Server) flash(r *http.Request, category, message string) {
	bag := flashesFrom(r)
	bag.messages = append(bag.messages, Flash{Category: category, Message: message})
}

// redirect carries pending flash messages over to the next page.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if err := s.sessions.persist(w, r); err != nil {
		s.logger.WithError(err).Warn("dropping flash messages")
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, data interface{}) {
	p := page{
		Title:       title,
		CurrentUser: currentUser(r),
		Flashes:     s.sessions.drain(w, r),
		Data:        data,
	}
	if err := s.views.render(w, http.StatusOK, name, p); err != nil {
		s.logger.WithError(err).WithField("template", name).Error("render failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

type errorPage struct {
	Status  int
	Message string
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, status int, message string) {
	p := page{
		Title:       http.StatusText(status),
		CurrentUser: currentUser(r),
		Data:        errorPage{Status: status, Message: message},
	}
	if err := s.views.render(w, status, "error", p); err != nil {
		s.logger.WithError(err).Error("render error page")
		http.Error(w, message, status)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("request failed")
	s.sendError(w, r, http.StatusInternalServerError, "Internal server error")
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.sendError(w, r, http.StatusNotFound, "Page not found")
}

// lookupUser resolves the {username} path variable. It writes the response
// itself and returns false when the user cannot be loaded.
func (s *Server) lookupUser(w http.ResponseWriter, r *http.Request) (User, bool) {
	user, err := s.store.GetUserByUsername(r.Context(), mux.Vars(r)["username"])
	if errors.Is(err, ErrNotFound) {
		s.notFound(w, r)
		return User{}, false
	}
	if err != nil {
		s.serverError(w, r, err)
		return User{}, false
	}
	return user, true
}

// ownerPost parses a POST to a user page. Only the page owner may post.
func (s *Server) ownerPost(w http.ResponseWriter, r *http.Request, owner User) bool {
	if currentUser(r) != owner.Username {
		s.sendError(w, r, http.StatusForbidden, "You can only change your own pages.")
		return false
	}
	if err := r.ParseForm(); err != nil {
		s.sendError(w, r, http.StatusBadRequest, "Invalid form data")
		return false
	}
	return true
}

func userPath(prefix, username string) string {
	return prefix + url.PathEscape(username)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	form := NewIndexForm()
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			s.sendError(w, r, http.StatusBadRequest, "Invalid form data")
			return
		}
	}

	switch {
	case form.Login.Submitted(r):
		if s.login(w, r, form.Login) {
			return
		}
	case form.Register.Submitted(r):
		if s.register(w, r, form.Register) {
			return
		}
	}

	s.render(w, r, "index", "Welcome", form)
}

// login reports whether the response has already been written.
func (s *Server) login(w http.ResponseWriter, r *http.Request, form *Form) bool {
	form.Bind(r)
	if !form.Validate() {
		return false
	}

	user, err := s.store.GetUserByUsername(r.Context(), form.Get("username"))
	switch {
	case errors.Is(err, ErrNotFound):
		s.flash(r, "warning", "Sorry, this user does not exist!")
		return false
	case err != nil:
		s.serverError(w, r, err)
		return true
	case !checkPasswordHash(form.Get("password"), user.Password):
		s.flash(r, "warning", "Sorry, wrong password!")
		return false
	}

	if err := s.sessions.Login(w, user.Username, form.Checked("remember_me")); err != nil {
		s.serverError(w, r, err)
		return true
	}
	s.logger.WithField("username", user.Username).Info("user logged in")
	s.redirect(w, r, userPath("/stream/", user.Username))
	return true
}

// register reports whether the response has already been written.
func (s *Server) register(w http.ResponseWriter, r *http.Request, form *Form) bool {
	form.Bind(r)
	if !form.Validate() {
		return false
	}

	hashed, err := hashPassword(form.Get("password"), s.cfg.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		form.Field("password").Errors = append(form.Field("password").Errors, "Password is too long.")
		return false
	}
	if err != nil {
		s.serverError(w, r, err)
		return true
	}

	_, err = s.store.CreateUser(r.Context(), NewUser{
		Username:  form.Get("username"),
		FirstName: form.Get("first_name"),
		LastName:  form.Get("last_name"),
		Password:  hashed,
	})
	switch {
	case errors.Is(err, ErrUsernameTaken):
		s.flash(r, "warning", "Sorry, this username is already taken!")
		return false
	case err != nil:
		s.serverError(w, r, err)
		return true
	}

	s.logger.WithField("username", form.Get("username")).Info("user registered")
	s.flash(r, "success", "User successfully created!")
	s.redirect(w, r, "/index")
	return true
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w)
	s.flash(r, "info", "You have been logged out.")
	s.redirect(w, r, "/index")
}
