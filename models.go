package main

import (
	"time"
)

type User struct {
	ID          int64  `db:"id"`
	Username    string `db:"username"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	Password    string `db:"password"`
	Education   string `db:"education"`
	Employment  string `db:"employment"`
	Music       string `db:"music"`
	Movie       string `db:"movie"`
	Nationality string `db:"nationality"`
	Birthday    string `db:"birthday"`
}

// NewUser carries the registration form values. Password must already be hashed.
type NewUser struct {
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// Profile is the editable part of a user row.
type Profile struct {
	Education   string `db:"education"`
	Employment  string `db:"employment"`
	Music       string `db:"music"`
	Movie       string `db:"movie"`
	Nationality string `db:"nationality"`
	Birthday    string `db:"birthday"`
}

// Post is a posts row joined with its author and comment count.
type Post struct {
	ID           int64  `db:"id"`
	UserID       int64  `db:"u_id"`
	Username     string `db:"username"`
	Content      string `db:"content"`
	Image        string `db:"image"`
	CreatedMilli int64  `db:"creation_time"`
	CommentCount int    `db:"comment_count"`
}

func (p Post) CreatedAt() time.Time {
	return time.UnixMilli(p.CreatedMilli)
}

type Comment struct {
	ID           int64  `db:"id"`
	PostID       int64  `db:"p_id"`
	UserID       int64  `db:"u_id"`
	Username     string `db:"username"`
	Comment      string `db:"comment"`
	CreatedMilli int64  `db:"creation_time"`
}

func (c Comment) CreatedAt() time.Time {
	return time.UnixMilli(c.CreatedMilli)
}
