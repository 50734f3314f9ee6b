package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver "pgx"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // PostgreSQL driver "postgres"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver "sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var (
	ErrNotFound       = errors.New("not found")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrSelfFriendship = errors.New("cannot be friends with yourself")
)

func init() {
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

// Store is the persistence access layer. Every method issues parameterized
// SQL against a single handle and commits on its own.
type Store struct {
	db     *sqlx.DB
	driver string
	logger *logrus.Logger
	now    func() time.Time
}

func OpenStore(ctx context.Context, cfg *Config, logger *logrus.Logger) (*Store, error) {
	db, err := sqlx.Open(cfg.Database.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{
		db:     db,
		driver: cfg.Database.Driver,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) postgres() bool {
	return s.driver == driverPgx || s.driver == driverPostgres
}

// Init runs the schema script for the current dialect. The script only
// creates what is missing, so it is safe on every start.
func (s *Store) Init(ctx context.Context) error {
	name := "schema/sqlite.sql"
	if s.postgres() {
		name = "schema/postgres.sql"
	}
	script, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	s.logger.WithField("driver", s.driver).Info("database schema initialized")
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, s.db.Rebind("SELECT * FROM users WHERE id = ?"), id)
	return user, notFound(err)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, s.db.Rebind("SELECT * FROM users WHERE username = ?"), username)
	return user, notFound(err)
}

func (s *Store) CreateUser(ctx context.Context, u NewUser) (int64, error) {
	query := s.db.Rebind(`INSERT INTO users (username, first_name, last_name, password)
VALUES (?, ?, ?, ?)
ON CONFLICT (username) DO NOTHING
RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query, u.Username, u.FirstName, u.LastName, u.Password).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUsernameTaken
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, username string, p Profile) error {
	res, err := s.db.NamedExecContext(ctx, `UPDATE users SET
education = :education, employment = :employment, music = :music,
movie = :movie, nationality = :nationality, birthday = :birthday
WHERE username = :username`, map[string]interface{}{
		"education":   p.Education,
		"employment":  p.Employment,
		"music":       p.Music,
		"movie":       p.Movie,
		"nationality": p.Nationality,
		"birthday":    p.Birthday,
		"username":    username,
	})
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, userID int64, content, image string) (int64, error) {
	query := s.db.Rebind(`INSERT INTO posts (u_id, content, image, creation_time)
VALUES (?, ?, ?, ?) RETURNING id`)

	var id int64
	if err := s.db.QueryRowxContext(ctx, query, userID, content, image, s.now().UnixMilli()).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

const selectPosts = `SELECT p.id, p.u_id, u.username, p.content, p.image, p.creation_time,
(SELECT COUNT(*) FROM comments c WHERE c.p_id = p.id) AS comment_count
FROM posts p JOIN users u ON u.id = p.u_id`

const newestFirst = ` ORDER BY p.creation_time DESC, p.id DESC`

func (s *Store) GetPostByID(ctx context.Context, id int64) (Post, error) {
	var post Post
	err := s.db.GetContext(ctx, &post, s.db.Rebind(selectPosts+" WHERE p.id = ?"), id)
	return post, notFound(err)
}

func (s *Store) ListPostsByUser(ctx context.Context, userID int64) ([]Post, error) {
	var posts []Post
	err := s.db.SelectContext(ctx, &posts, s.db.Rebind(selectPosts+" WHERE p.u_id = ?"+newestFirst), userID)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// ListStream returns the posts of the user and of all their friends, newest first.
func (s *Store) ListStream(ctx context.Context, userID int64) ([]Post, error) {
	ids, err := s.friendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids = append(ids, userID)

	var (
		query string
		args  []interface{}
	)
	if s.postgres() {
		query = selectPosts + " WHERE p.u_id = ANY(?)" + newestFirst
		args = []interface{}{pq.Array(ids)}
	} else {
		query, args, err = sqlx.In(selectPosts+" WHERE p.u_id IN (?)"+newestFirst, ids)
		if err != nil {
			return nil, fmt.Errorf("build stream query: %w", err)
		}
	}

	var posts []Post
	if err := s.db.SelectContext(ctx, &posts, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list stream: %w", err)
	}
	return posts, nil
}

// CreateComment fails with ErrNotFound if the post does not exist.
func (s *Store) CreateComment(ctx context.Context, postID, userID int64, comment string) (int64, error) {
	query := s.db.Rebind(`INSERT INTO comments (p_id, u_id, comment, creation_time)
SELECT p.id, CAST(? AS BIGINT), ?, CAST(? AS BIGINT) FROM posts p WHERE p.id = ?
RETURNING id`)

	var id int64
	err := s.db.QueryRowxContext(ctx, query, userID, comment, s.now().UnixMilli(), postID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	return id, nil
}

func (s *Store) ListComments(ctx context.Context, postID int64) ([]Comment, error) {
	var comments []Comment
	err := s.db.SelectContext(ctx, &comments, s.db.Rebind(`SELECT c.id, c.p_id, c.u_id, u.username, c.comment, c.creation_time
FROM comments c JOIN users u ON u.id = c.u_id
WHERE c.p_id = ?
ORDER BY c.creation_time, c.id`), postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func friendPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// CreateFriendship stores the unordered pair once. It reports false when the
// two users were already friends.
func (s *Store) CreateFriendship(ctx context.Context, a, b int64) (bool, error) {
	if a == b {
		return false, ErrSelfFriendship
	}
	lo, hi := friendPair(a, b)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO friends (user_a, user_b, creation_time)
VALUES (?, ?, ?) ON CONFLICT DO NOTHING`), lo, hi, s.now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert friendship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert friendship: %w", err)
	}
	return n > 0, nil
}

func (s *Store) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	lo, hi := friendPair(a, b)
	var count int
	err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM friends WHERE user_a = ? AND user_b = ?"), lo, hi)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return count > 0, nil
}

const friendsOf = `SELECT user_b FROM friends WHERE user_a = ?
UNION SELECT user_a FROM friends WHERE user_b = ?`

func (s *Store) ListFriends(ctx context.Context, userID int64) ([]User, error) {
	var friends []User
	err := s.db.SelectContext(ctx, &friends, s.db.Rebind("SELECT * FROM users WHERE id IN ("+friendsOf+") ORDER BY username"), userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

func (s *Store) friendIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, s.db.Rebind(friendsOf), userID, userID); err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	return ids, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
