package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const dateLayout = "2006-01-02"

// A validator inspects the bound value of a field and returns an error message,
// or "" when the value is acceptable.
type validator func(f *Form, value string) string

func dataRequired() validator {
	return func(_ *Form, value string) string {
		if value == "" {
			return "This field is required."
		}
		return ""
	}
}

func length(min, max int) validator {
	return func(_ *Form, value string) string {
		n := utf8.RuneCountInString(value)
		if n < min || n > max {
			return fmt.Sprintf("Field must be between %d and %d characters long.", min, max)
		}
		return ""
	}
}

func equalTo(other string) validator {
	return func(f *Form, value string) string {
		if value != f.Get(other) {
			return fmt.Sprintf("Field must be equal to %s.", other)
		}
		return ""
	}
}

func date() validator {
	return func(_ *Form, value string) string {
		if value == "" {
			return ""
		}
		if _, err := time.Parse(dateLayout, value); err != nil {
			return "Not a valid date value."
		}
		return ""
	}
}

type Field struct {
	Name        string
	Label       string
	Type        string
	Placeholder string
	Value       string
	Errors      []string

	raw        bool
	validators []validator
}

type Form struct {
	Prefix string
	Submit string
	Fields []*Field
}

func (f *Form) Field(name string) *Field {
	for _, field := range f.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

func (f *Form) Get(name string) string {
	if field := f.Field(name); field != nil {
		return field.Value
	}
	return ""
}

func (f *Form) Set(name, value string) {
	if field := f.Field(name); field != nil {
		field.Value = value
	}
}

// Submitted reports whether r is a POST carrying this form's submit button.
// The request form must already be parsed.
func (f *Form) Submitted(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	_, ok := r.PostForm[f.Prefix+"submit"]
	return ok
}

// Bind copies the posted values into the fields. Text values are trimmed and
// NFC-normalized so that visually equal usernames compare equal.
func (f *Form) Bind(r *http.Request) {
	for _, field := range f.Fields {
		if field.Type == "file" {
			continue
		}
		value := r.PostFormValue(f.Prefix + field.Name)
		if !field.raw {
			value = norm.NFC.String(strings.TrimSpace(value))
		}
		field.Value = value
	}
}

func (f *Form) Validate() bool {
	ok := true
	for _, field := range f.Fields {
		field.Errors = nil
		for _, v := range field.validators {
			if msg := v(f, field.Value); msg != "" {
				field.Errors = append(field.Errors, msg)
				ok = false
				break
			}
		}
	}
	return ok
}

func (f *Form) Checked(name string) bool {
	switch f.Get(name) {
	case "y", "on", "true", "1":
		return true
	}
	return false
}

func NewLoginForm() *Form {
	return &Form{
		Prefix: "login-",
		Submit: "Sign In",
		Fields: []*Field{
			{Name: "username", Label: "Username", Type: "text", Placeholder: "Username", validators: []validator{dataRequired()}},
			{Name: "password", Label: "Password", Type: "password", Placeholder: "Password", raw: true, validators: []validator{dataRequired()}},
			{Name: "remember_me", Label: "Remember me", Type: "checkbox"},
		},
	}
}

func NewRegisterForm() *Form {
	return &Form{
		Prefix: "register-",
		Submit: "Sign Up",
		Fields: []*Field{
			{Name: "first_name", Label: "First Name", Type: "text", Placeholder: "First Name", validators: []validator{dataRequired()}},
			{Name: "last_name", Label: "Last Name", Type: "text", Placeholder: "Last Name", validators: []validator{dataRequired()}},
			{Name: "username", Label: "Username", Type: "text", Placeholder: "Username", validators: []validator{dataRequired(), length(4, 25)}},
			{Name: "password", Label: "Password", Type: "password", Placeholder: "Password", raw: true, validators: []validator{dataRequired(), length(6, 35)}},
			{Name: "confirm_password", Label: "Confirm Password", Type: "password", Placeholder: "Confirm Password", raw: true, validators: []validator{dataRequired(), equalTo("password")}},
		},
	}
}

// IndexForm groups the login and register forms shown on the index page.
type IndexForm struct {
	Login    *Form
	Register *Form
}

func NewIndexForm() *IndexForm {
	return &IndexForm{Login: NewLoginForm(), Register: NewRegisterForm()}
}

func NewPostForm() *Form {
	return &Form{
		Submit: "Post",
		Fields: []*Field{
			{Name: "content", Label: "New Post", Type: "textarea", Placeholder: "What are you thinking about?", validators: []validator{dataRequired()}},
			{Name: "image", Label: "Image", Type: "file"},
		},
	}
}

func NewCommentsForm() *Form {
	return &Form{
		Submit: "Comment",
		Fields: []*Field{
			{Name: "comment", Label: "New Comment", Type: "textarea", Placeholder: "What do you have to say?", validators: []validator{dataRequired()}},
		},
	}
}

func NewFriendsForm() *Form {
	return &Form{
		Submit: "Add Friend",
		Fields: []*Field{
			{Name: "username", Label: "Friend's username", Type: "text", Placeholder: "Username", validators: []validator{dataRequired()}},
		},
	}
}

func NewProfileForm() *Form {
	return &Form{
		Submit: "Update Profile",
		Fields: []*Field{
			{Name: "education", Label: "Education", Type: "text", Placeholder: "Highest education"},
			{Name: "employment", Label: "Employment", Type: "text", Placeholder: "Current employment"},
			{Name: "music", Label: "Favorite song", Type: "text", Placeholder: "Favorite song"},
			{Name: "movie", Label: "Favorite movie", Type: "text", Placeholder: "Favorite movie"},
			{Name: "nationality", Label: "Nationality", Type: "text", Placeholder: "Your nationality"},
			{Name: "birthday", Label: "Birthday", Type: "date", validators: []validator{dataRequired(), date()}},
		},
	}
}

// profileFormFor prefills the profile form from the stored user.
func profileFormFor(u User) *Form {
	form := NewProfileForm()
	form.Set("education", u.Education)
	form.Set("employment", u.Employment)
	form.Set("music", u.Music)
	form.Set("movie", u.Movie)
	form.Set("nationality", u.Nationality)
	form.Set("birthday", u.Birthday)
	if form.Get("birthday") == "" {
		form.Set("birthday", time.Now().Format(dateLayout))
	}
	return form
}

func (f *Form) Profile() Profile {
	return Profile{
		Education:   f.Get("education"),
		Employment:  f.Get("employment"),
		Music:       f.Get("music"),
		Movie:       f.Get("movie"),
		Nationality: f.Get("nationality"),
		Birthday:    f.Get("birthday"),
	}
}
