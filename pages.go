package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type streamPage struct {
	Username string
	Editable bool
	Form     *Form
	Posts    []Post
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	user, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	form := NewPostForm()

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
		if !s.ownerPost(w, r, user) {
			return
		}
		if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			s.uploadError(w, r, err)
			return
		}
		if form.Submitted(r) {
			form.Bind(r)
			if form.Validate() {
				image, err := s.saveUpload(r, "image")
				switch {
				case errors.Is(err, errFileNotAllowed):
					s.flash(r, "warning", "Sorry, this file type is not allowed!")
				case err != nil:
					s.serverError(w, r, err)
					return
				default:
					if _, err := s.store.CreatePost(r.Context(), user.ID, form.Get("content"), image); err != nil {
						s.serverError(w, r, err)
						return
					}
					s.redirect(w, r, userPath("/stream/", user.Username))
					return
				}
			}
		}
	}

	posts, err := s.store.ListStream(r.Context(), user.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, "stream", "Stream", streamPage{
		Username: user.Username,
		Editable: currentUser(r) == user.Username,
		Form:     form,
		Posts:    posts,
	})
}

type commentsPage struct {
	Username string
	Editable bool
	Form     *Form
	Post     Post
	Comments []Comment
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	user, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	postID, err := strconv.ParseInt(mux.Vars(r)["postID"], 10, 64)
	if err != nil {
		s.notFound(w, r)
		return
	}
	post, err := s.store.GetPostByID(r.Context(), postID)
	if errors.Is(err, ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	form := NewCommentsForm()

	if r.Method == http.MethodPost {
		if !s.ownerPost(w, r, user) {
			return
		}
		if form.Submitted(r) {
			form.Bind(r)
			if form.Validate() {
				_, err := s.store.CreateComment(r.Context(), post.ID, user.ID, form.Get("comment"))
				if errors.Is(err, ErrNotFound) {
					s.notFound(w, r)
					return
				}
				if err != nil {
					s.serverError(w, r, err)
					return
				}
				s.redirect(w, r, userPath("/comments/", user.Username)+"/"+strconv.FormatInt(post.ID, 10))
				return
			}
		}
	}

	comments, err := s.store.ListComments(r.Context(), post.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, "comments", "Comments", commentsPage{
		Username: user.Username,
		Editable: currentUser(r) == user.Username,
		Form:     form,
		Post:     post,
		Comments: comments,
	})
}

type friendsPage struct {
	Username string
	Editable bool
	Form     *Form
	Friends  []User
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request) {
	user, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	form := NewFriendsForm()

	if r.Method == http.MethodPost {
		if !s.ownerPost(w, r, user) {
			return
		}
		if form.Submitted(r) {
			form.Bind(r)
			if form.Validate() && !s.addFriend(w, r, user, form.Get("username")) {
				return
			}
		}
	}

	friends, err := s.store.ListFriends(r.Context(), user.ID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, "friends", "Friends", friendsPage{
		Username: user.Username,
		Editable: currentUser(r) == user.Username,
		Form:     form,
		Friends:  friends,
	})
}

// addFriend flashes the outcome. It returns false only after writing an error response.
func (s *Server) addFriend(w http.ResponseWriter, r *http.Request, user User, friendName string) bool {
	friend, err := s.store.GetUserByUsername(r.Context(), friendName)
	if errors.Is(err, ErrNotFound) {
		s.flash(r, "warning", "User does not exist!")
		return true
	}
	if err != nil {
		s.serverError(w, r, err)
		return false
	}

	created, err := s.store.CreateFriendship(r.Context(), user.ID, friend.ID)
	switch {
	case errors.Is(err, ErrSelfFriendship):
		s.flash(r, "warning", "You cannot be friends with yourself!")
	case err != nil:
		s.serverError(w, r, err)
		return false
	case !created:
		s.flash(r, "warning", "You are already friends with this user!")
	default:
		s.flash(r, "success", "Friend successfully added!")
	}
	return true
}

type profilePage struct {
	Username string
	Editable bool
	Form     *Form
	User     User
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	form := profileFormFor(user)

	if r.Method == http.MethodPost {
		if !s.ownerPost(w, r, user) {
			return
		}
		if form.Submitted(r) {
			form.Bind(r)
			if form.Validate() {
				if err := s.store.UpdateUserProfile(r.Context(), user.Username, form.Profile()); err != nil {
					s.serverError(w, r, err)
					return
				}
				s.redirect(w, r, userPath("/profile/", user.Username))
				return
			}
		}
	}

	s.render(w, r, "profile", "Profile", profilePage{
		Username: user.Username,
		Editable: currentUser(r) == user.Username,
		Form:     form,
		User:     user,
	})
}
