package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg := defaultConfig()
	cfg.SecretKey = "test-secret"
	cfg.InstancePath = t.TempDir()
	cfg.BcryptCost = bcrypt.MinCost
	require.NoError(t, cfg.EnsureDirs())
	return cfg
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

func newTestStore(t *testing.T, cfg *Config) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := OpenStore(ctx, cfg, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(ctx))

	// Strictly increasing clock so ordering by creation time is deterministic.
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return store
}

func mustCreateUser(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), NewUser{
		Username:  username,
		FirstName: "First " + username,
		LastName:  "Last " + username,
		Password:  "hash-" + username,
	})
	require.NoError(t, err)
	return id
}

func TestInitIsIdempotent(t *testing.T) {
	store := newTestStore(t, newTestConfig(t))
	require.NoError(t, store.Init(context.Background()))
}

func TestCreateUserThenLookup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))

	id, err := store.CreateUser(ctx, NewUser{
		Username:  "alice",
		FirstName: "Alice",
		LastName:  "Liddell",
		Password:  "hashed",
	})
	require.NoError(t, err)

	want := User{ID: id, Username: "alice", FirstName: "Alice", LastName: "Liddell", Password: "hashed"}

	byName, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	if diff := cmp.Diff(want, byName); diff != "" {
		t.Errorf("GetUserByUsername mismatch (-want +got):\n%s", diff)
	}

	byID, err := store.GetUserByID(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(want, byID); diff != "" {
		t.Errorf("GetUserByID mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))
	mustCreateUser(t, store, "alice")

	_, err := store.CreateUser(ctx, NewUser{Username: "alice", FirstName: "A", LastName: "B", Password: "x"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	var count int
	require.NoError(t, store.db.Get(&count, "SELECT COUNT(*) FROM users"))
	assert.Equal(t, 1, count)
}

func TestLookupMissingUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))

	_, err := store.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetUserByID(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUserProfile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))
	mustCreateUser(t, store, "alice")

	profile := Profile{
		Education:   "MSc",
		Employment:  "Engineer",
		Music:       "Blue in Green",
		Movie:       "Stalker",
		Nationality: "Norwegian",
		Birthday:    "1990-05-17",
	}
	require.NoError(t, store.UpdateUserProfile(ctx, "alice", profile))

	user, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	got := Profile{
		Education:   user.Education,
		Employment:  user.Employment,
		Music:       user.Music,
		Movie:       user.Movie,
		Nationality: user.Nationality,
		Birthday:    user.Birthday,
	}
	assert.Equal(t, profile, got)

	assert.ErrorIs(t, store.UpdateUserProfile(ctx, "nobody", profile), ErrNotFound)
}

func TestFriendshipIsUnorderedAndUnique(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")

	created, err := store.CreateFriendship(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateFriendship(ctx, bob, alice)
	require.NoError(t, err)
	assert.False(t, created, "same pair again")

	created, err = store.CreateFriendship(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, created, "reversed pair")

	var rows int
	require.NoError(t, store.db.Get(&rows, "SELECT COUNT(*) FROM friends"))
	assert.Equal(t, 1, rows)

	for _, pair := range [][2]int64{{alice, bob}, {bob, alice}} {
		ok, err := store.AreFriends(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok)
	}

	friends, err := store.ListFriends(ctx, alice)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)

	friends, err = store.ListFriends(ctx, bob)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "alice", friends[0].Username)
}

func TestFriendshipWithSelf(t *testing.T) {
	store := newTestStore(t, newTestConfig(t))
	alice := mustCreateUser(t, store, "alice")

	_, err := store.CreateFriendship(context.Background(), alice, alice)
	assert.ErrorIs(t, err, ErrSelfFriendship)
}

func TestStreamIncludesOwnAndFriendsPosts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")
	carol := mustCreateUser(t, store, "carol")

	_, err := store.CreateFriendship(ctx, alice, bob)
	require.NoError(t, err)

	_, err = store.CreatePost(ctx, alice, "alice first", "")
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, carol, "carol only", "")
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, bob, "bob says hi", "cat.png")
	require.NoError(t, err)
	_, err = store.CreatePost(ctx, alice, "alice second", "")
	require.NoError(t, err)

	posts, err := store.ListStream(ctx, alice)
	require.NoError(t, err)

	var contents []string
	for _, p := range posts {
		contents = append(contents, p.Content)
	}
	assert.Equal(t, []string{"alice second", "bob says hi", "alice first"}, contents)
	assert.Equal(t, "bob", posts[1].Username)
	assert.Equal(t, "cat.png", posts[1].Image)

	posts, err = store.ListStream(ctx, carol)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "carol only", posts[0].Content)

	posts, err = store.ListPostsByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "alice second", posts[0].Content)
}

func TestCommentOnMissingPost(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))
	alice := mustCreateUser(t, store, "alice")

	_, err := store.CreateComment(ctx, 999, alice, "hello?")
	assert.ErrorIs(t, err, ErrNotFound)

	var rows int
	require.NoError(t, store.db.Get(&rows, "SELECT COUNT(*) FROM comments"))
	assert.Zero(t, rows)

	_, err = store.GetPostByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentsOnPost(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, newTestConfig(t))
	alice := mustCreateUser(t, store, "alice")
	bob := mustCreateUser(t, store, "bob")

	postID, err := store.CreatePost(ctx, alice, "lunch?", "")
	require.NoError(t, err)

	_, err = store.CreateComment(ctx, postID, bob, "sure")
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, postID, alice, "great")
	require.NoError(t, err)

	post, err := store.GetPostByID(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, 2, post.CommentCount)
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 1, 0, time.UTC), post.CreatedAt().UTC())

	comments, err := store.ListComments(ctx, postID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "bob", comments[0].Username)
	assert.Equal(t, "sure", comments[0].Comment)
	assert.Equal(t, "alice", comments[1].Username)
}
